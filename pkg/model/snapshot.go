package model

// Category holds one inventory category of a snapshot. A category is either
// collected (Entries, possibly empty) or skipped with a reason; an empty
// collected category means "looked, found nothing" and is never the same as
// a skipped one.
type Category struct {
	Entries []string `json:"entries"`
	Skipped bool     `json:"skipped,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

// Present wraps collected entries into a Category.
func Present(entries []string) Category {
	if entries == nil {
		entries = []string{}
	}
	return Category{Entries: entries}
}

// Skip marks a category as not collected.
func Skip(reason string) Category {
	return Category{Skipped: true, Reason: reason}
}

// SSHKey is one authorized key owned by a local user account.
type SSHKey struct {
	User string `json:"user"`
	Key  string `json:"key"`
}

// KeyedCategory is the ssh_keys variant of Category: entries carry an
// identity (the user) so diffs can report changed keys, not just churn.
type KeyedCategory struct {
	Entries []SSHKey `json:"entries"`
	Skipped bool     `json:"skipped,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

func PresentKeys(entries []SSHKey) KeyedCategory {
	if entries == nil {
		entries = []SSHKey{}
	}
	return KeyedCategory{Entries: entries}
}

func SkipKeys(reason string) KeyedCategory {
	return KeyedCategory{Skipped: true, Reason: reason}
}

// Snapshot is the structured inventory captured by one successful scan.
type Snapshot struct {
	Hostname string `json:"hostname"`
	IP       string `json:"ip"`
	OS       string `json:"os"`
	BootTime string `json:"boot_time"`
	Uptime   string `json:"uptime"`

	Filesystem         Category      `json:"filesystem"`
	ListeningPorts     Category      `json:"listening_ports"`
	VerifiedServices   Category      `json:"verified_services"`
	AllServices        Category      `json:"all_services"`
	Docker             Category      `json:"docker"`
	ProcessList        Category      `json:"process_list"`
	Packages           Category      `json:"packages"`
	UpgradablePackages Category      `json:"upgradable_packages"`
	FirewallRules      Category      `json:"firewall_rules"`
	LoginHistory       Category      `json:"login_history"`
	SystemdTimers      Category      `json:"systemd_timers"`
	SSHKeys            KeyedCategory `json:"ssh_keys"`
}

// SetCategories lists every set-valued category by its wire name, in a fixed
// order. ssh_keys is keyed and handled separately.
var SetCategories = []string{
	"filesystem",
	"listening_ports",
	"verified_services",
	"all_services",
	"docker",
	"process_list",
	"packages",
	"upgradable_packages",
	"firewall_rules",
	"login_history",
	"systemd_timers",
}

// SetCategory returns the named set-valued category.
func (s *Snapshot) SetCategory(name string) Category {
	switch name {
	case "filesystem":
		return s.Filesystem
	case "listening_ports":
		return s.ListeningPorts
	case "verified_services":
		return s.VerifiedServices
	case "all_services":
		return s.AllServices
	case "docker":
		return s.Docker
	case "process_list":
		return s.ProcessList
	case "packages":
		return s.Packages
	case "upgradable_packages":
		return s.UpgradablePackages
	case "firewall_rules":
		return s.FirewallRules
	case "login_history":
		return s.LoginHistory
	case "systemd_timers":
		return s.SystemdTimers
	}
	return Skip("unknown category")
}
