package model

import "time"

// Host is a registered remote machine reachable over SSH. Credentials are
// stored encrypted and never serialized back to clients.
type Host struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Hostname  string    `gorm:"index;size:255" json:"hostname"`
	IPAddress string    `gorm:"index;size:64" json:"ip_address"`
	SSHUser   string    `gorm:"size:64" json:"ssh_user"`
	// Encrypted at rest via pkg/secret; exactly one of the two is normally set.
	SSHPassword string    `json:"-"`
	SSHKey      string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}
