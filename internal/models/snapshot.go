package models

// Snapshot is the full state of the ledger at a point in time.
// It is the shape of the flat snapshot file and of the JSON export.
type Snapshot struct {
	Customers    []Customer    `json:"customers"`
	Transactions []Transaction `json:"transactions"`
	BreadOrders  []BreadOrder  `json:"breadOrders"`
}

// Clone returns a deep copy of s. Nil collections become empty slices so the
// JSON form always carries all three keys as arrays.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Customers:    make([]Customer, len(s.Customers)),
		Transactions: make([]Transaction, len(s.Transactions)),
		BreadOrders:  make([]BreadOrder, len(s.BreadOrders)),
	}
	copy(out.Customers, s.Customers)
	copy(out.Transactions, s.Transactions)
	for i, o := range s.BreadOrders {
		out.BreadOrders[i] = o.Clone()
	}
	return out
}

// Clone returns a copy of o that shares no pointers with it.
func (o BreadOrder) Clone() BreadOrder {
	if o.CustomerID != nil {
		id := *o.CustomerID
		o.CustomerID = &id
	}
	if o.CustomerName != nil {
		name := *o.CustomerName
		o.CustomerName = &name
	}
	return o
}
