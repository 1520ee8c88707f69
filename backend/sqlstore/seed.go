////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package sqlstore

import (
	"context"
	"os"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gopkg.in/yaml.v3"

	"gitlab.com/elixxir/chatsync/models"
)

// Error messages.
const (
	readSeedErr  = "failed to read seed file %s: %+v"
	parseSeedErr = "failed to parse seed: %+v"
	applySeedErr = "failed to seed server %q: %+v"
)

// Seed is the YAML description of servers, their channels and members, and
// profiles.
type Seed struct {
	Servers  []SeedServer     `yaml:"servers"`
	Profiles []models.Profile `yaml:"profiles"`
}

// SeedServer is one server of a Seed.
type SeedServer struct {
	models.Server `yaml:",inline"`

	Channels []models.Channel      `yaml:"channels"`
	Members  []models.ServerMember `yaml:"members"`
}

// LoadSeed reads a Seed from a YAML file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf(readSeedErr, path, err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes a Seed from YAML.
func ParseSeed(data []byte) (*Seed, error) {
	seed := &Seed{}
	if err := yaml.Unmarshal(data, seed); err != nil {
		return nil, errors.Errorf(parseSeedErr, err)
	}
	return seed, nil
}

// Apply writes the seed to the store. Servers and channels without IDs are
// given new ones. It stops at the first failure.
func (s *Store) Apply(ctx context.Context, seed *Seed) error {
	for _, ss := range seed.Servers {
		srv, err := s.CreateServer(ctx, ss.Server)
		if err != nil {
			return errors.Errorf(applySeedErr, ss.Name, err)
		}

		for i, ch := range ss.Channels {
			ch.ServerID = srv.ID
			if ch.Position == 0 {
				ch.Position = i
			}
			if _, err = s.CreateChannel(ctx, ch); err != nil {
				return errors.Errorf(applySeedErr, ss.Name, err)
			}
		}

		for _, m := range ss.Members {
			m.ServerID = srv.ID
			if err = s.AddMember(ctx, m); err != nil {
				return errors.Errorf(applySeedErr, ss.Name, err)
			}
		}

		jww.INFO.Printf("[SQL] Seeded server %s (%s) with %d channels and "+
			"%d members", srv.Name, srv.ID, len(ss.Channels), len(ss.Members))
	}

	for _, p := range seed.Profiles {
		if err := s.SetProfile(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
