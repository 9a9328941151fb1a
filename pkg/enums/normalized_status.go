package enums

// NormalizedStatus is the provider-agnostic outcome a gateway adapter
// distills from a provider-specific payload.
type NormalizedStatus string

const (
	NormalizedSuccess NormalizedStatus = "SUCCESS"
	NormalizedFailed  NormalizedStatus = "FAILED"
	NormalizedPending NormalizedStatus = "PENDING"
)

// String implements fmt.Stringer.
func (n NormalizedStatus) String() string {
	return string(n)
}
