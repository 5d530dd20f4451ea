package digitalocean

import (
	"context"
	"fmt"
	"strings"

	"github.com/digitalocean/godo"
	"golang.org/x/crypto/ssh"

	"github.com/celestiaorg/cloudjob/internal/job"
	"github.com/celestiaorg/cloudjob/internal/logger"
)

// Keys registers SSH keys on the account
type Keys struct {
	keys KeyService
}

// NewKeys creates a Keys
func NewKeys(s *Services) *Keys {
	return &Keys{keys: s.Keys}
}

// Ensure returns the account key matching publicKey, uploading it under name
// when it is not registered yet. Keys are matched by fingerprint, not name.
func (k *Keys) Ensure(ctx context.Context, name, publicKey string) (*godo.Key, error) {
	var fingerprint string

	e := &job.Ensurer[*godo.Key]{
		Name: fmt.Sprintf("SSH key %q", name),
		Precondition: func(context.Context) error {
			parsed, _, _, _, err := ssh.ParseAuthorizedKey([]byte(publicKey))
			if err != nil {
				return job.Unmet("invalid public key: %v", err)
			}
			fingerprint = ssh.FingerprintLegacyMD5(parsed)
			return nil
		},
		Find: func(ctx context.Context) (*godo.Key, bool, error) {
			all, err := listAll(ctx, k.keys.List)
			if err != nil {
				return nil, false, classify(err)
			}
			for i := range all {
				if all[i].Fingerprint == fingerprint {
					return &all[i], true, nil
				}
			}
			return nil, false, nil
		},
		Create: func(ctx context.Context) (job.Submitted[*godo.Key], error) {
			key, _, err := k.keys.Create(ctx, &godo.KeyCreateRequest{
				Name:      name,
				PublicKey: strings.TrimSpace(publicKey),
			})
			if err != nil {
				return job.Submitted[*godo.Key]{}, classify(err)
			}
			logger.Infof("Uploaded SSH key %s (%s)", key.Name, key.Fingerprint)
			return job.Finished(key), nil
		},
	}
	return e.Ensure(ctx)
}
