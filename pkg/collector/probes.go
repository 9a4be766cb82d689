package collector

import "driftwatch/pkg/model"

// probe is one independently fallible inventory command. Probes run in a
// fixed order; a failing probe marks its category Skipped and the battery
// moves on.
type probe struct {
	name   string
	cmd    string
	parse  func(out string) []string
	assign func(s *model.Snapshot, c model.Category)
}

var probes = []probe{
	{
		name:   "filesystem",
		cmd:    "df -hP",
		parse:  parseTable,
		assign: func(s *model.Snapshot, c model.Category) { s.Filesystem = c },
	},
	{
		name:   "listening_ports",
		cmd:    "ss -tulnp",
		parse:  parseTable,
		assign: func(s *model.Snapshot, c model.Category) { s.ListeningPorts = c },
	},
	{
		name:   "verified_services",
		cmd:    "systemctl list-units --type=service --state=running --no-legend --no-pager",
		parse:  parseFirstField,
		assign: func(s *model.Snapshot, c model.Category) { s.VerifiedServices = c },
	},
	{
		name:   "all_services",
		cmd:    "systemctl list-unit-files --type=service --no-legend --no-pager",
		parse:  parseLines,
		assign: func(s *model.Snapshot, c model.Category) { s.AllServices = c },
	},
	{
		name:   "docker",
		cmd:    `docker ps --format '{{.Names}} {{.Image}} {{.Status}}'`,
		parse:  parseLines,
		assign: func(s *model.Snapshot, c model.Category) { s.Docker = c },
	},
	{
		name:   "process_list",
		cmd:    "ps -eo user,comm --no-headers | sort -u",
		parse:  parseLines,
		assign: func(s *model.Snapshot, c model.Category) { s.ProcessList = c },
	},
	{
		name:   "packages",
		cmd:    `dpkg-query -W -f='${Package} ${Version}\n' 2>/dev/null || rpm -qa`,
		parse:  parseLines,
		assign: func(s *model.Snapshot, c model.Category) { s.Packages = c },
	},
	{
		name:   "upgradable_packages",
		cmd:    "apt list --upgradable 2>/dev/null | tail -n +2",
		parse:  parseLines,
		assign: func(s *model.Snapshot, c model.Category) { s.UpgradablePackages = c },
	},
	{
		name:   "firewall_rules",
		cmd:    "iptables -S",
		parse:  parseLines,
		assign: func(s *model.Snapshot, c model.Category) { s.FirewallRules = c },
	},
	{
		name:   "login_history",
		cmd:    "last -n 20 -F",
		parse:  parseLines,
		assign: func(s *model.Snapshot, c model.Category) { s.LoginHistory = c },
	},
	{
		name:   "systemd_timers",
		cmd:    "systemctl list-timers --all --no-legend --no-pager",
		parse:  parseTimers,
		assign: func(s *model.Snapshot, c model.Category) { s.SystemdTimers = c },
	},
}

// sshKeysCmd enumerates authorized keys per local user as "user key" lines.
const sshKeysCmd = `for d in /home/* /root; do u=$(basename "$d"); f="$d/.ssh/authorized_keys"; ` +
	`if [ -r "$f" ]; then while IFS= read -r k; do [ -n "$k" ] && echo "$u $k"; done < "$f"; fi; done`
