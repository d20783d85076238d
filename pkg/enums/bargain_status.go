package enums

// BargainStatus is the state of a buyer's price offer on a cart line.
type BargainStatus string

const (
	BargainStatusPending  BargainStatus = "pending"
	BargainStatusAccepted BargainStatus = "accepted"
	BargainStatusRejected BargainStatus = "rejected"
)

var bargainStatuses = []BargainStatus{BargainStatusPending, BargainStatusAccepted, BargainStatusRejected}

func (s BargainStatus) String() string { return string(s) }

func (s BargainStatus) IsValid() bool {
	_, err := ParseBargainStatus(string(s))
	return err == nil
}

func ParseBargainStatus(raw string) (BargainStatus, error) {
	return parse(bargainStatuses, "bargain status", raw)
}
