package models

// Platform is the singleton contract-wide state. OwnerID is fixed at genesis;
// PlatformFeeBps is mutable only through the set_platform_fee operation.
type Platform struct {
	OwnerID        string `json:"owner_id"`
	PlatformFeeBps int    `json:"platform_fee_bps"`
}

func (p *Platform) Clone() *Platform {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
