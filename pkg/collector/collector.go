// Package collector opens an SSH session to a registered host and runs a
// fixed battery of inventory probes. Individual probes may fail without
// failing the scan; only a session-level failure aborts the whole job.
package collector

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"driftwatch/pkg/model"
	"driftwatch/pkg/secret"
)

// Collector gathers a Snapshot from one host per call. Safe for concurrent
// use across hosts.
type Collector struct {
	dialTimeout time.Duration
	log         zerolog.Logger
}

func New(log zerolog.Logger) *Collector {
	return &Collector{
		dialTimeout: 15 * time.Second,
		log:         log.With().Str("component", "collector").Logger(),
	}
}

// Collect runs the full probe battery against the host. On session-level
// failure the returned error is a *CollectError carrying the failure kind
// and diagnostic detail.
func (c *Collector) Collect(ctx context.Context, host model.Host) (*model.Snapshot, error) {
	password, err := secret.Decrypt(host.SSHPassword)
	if err != nil {
		return nil, authError("cannot decrypt stored password", err)
	}
	key, err := secret.Decrypt(host.SSHKey)
	if err != nil {
		return nil, authError("cannot decrypt stored private key", err)
	}

	sess, err := c.dial(ctx, host, password, key)
	if err != nil {
		return nil, err
	}
	defer sess.close()

	snap := &model.Snapshot{IP: host.IPAddress}
	c.collectIdentity(sess, snap)

	for _, p := range probes {
		out, perr := sess.run(p.cmd)
		if perr != nil {
			if ctx.Err() != nil {
				return nil, timeoutError(ctx, sess)
			}
			reason := skipReason(perr)
			c.log.Debug().Uint("host", host.ID).Str("probe", p.name).Str("reason", reason).Msg("probe skipped")
			p.assign(snap, model.Skip(reason))
			continue
		}
		p.assign(snap, model.Present(p.parse(out)))
	}

	keysOut, kerr := sess.run(sshKeysCmd)
	if kerr != nil {
		if ctx.Err() != nil {
			return nil, timeoutError(ctx, sess)
		}
		snap.SSHKeys = model.SkipKeys(skipReason(kerr))
	} else {
		snap.SSHKeys = model.PresentKeys(parseSSHKeys(keysOut))
	}

	if ctx.Err() != nil {
		return nil, timeoutError(ctx, sess)
	}
	return snap, nil
}

// collectIdentity fills the scalar snapshot fields. These use the same
// session; a failed identity command leaves its field empty rather than
// skipping the scan.
func (c *Collector) collectIdentity(sess *session, snap *model.Snapshot) {
	if out, err := sess.run("hostname"); err == nil {
		snap.Hostname = strings.TrimSpace(out)
	}
	if out, err := sess.run("cat /etc/os-release"); err == nil {
		snap.OS = parseOSRelease(out)
	}
	if out, err := sess.run("uptime -s"); err == nil {
		snap.BootTime = strings.TrimSpace(out)
	}
	if out, err := sess.run("uptime -p"); err == nil {
		snap.Uptime = strings.TrimSpace(out)
	}
}
