package market

type Status string

const (
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusPaid           Status = "PAID"
	StatusCancelled      Status = "CANCELLED"
)

// PAID and CANCELLED are terminal; a single enum rules out paid+cancelled.
var validNext = map[Status]map[Status]bool{
	StatusPendingPayment: {StatusPaid: true, StatusCancelled: true},
	StatusPaid:           {},
	StatusCancelled:      {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
