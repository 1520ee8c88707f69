////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package versioned wraps an ekv store with versioned, prefixed keys. It holds
// the engine state that must outlive the process, such as group references
// that were created but not yet persisted to the backing store.
package versioned

import (
	"fmt"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/ekv"
)

// PrefixSeparator separates the prefixes of a key.
const PrefixSeparator = "/"

// Error messages.
const (
	openFilestoreErr = "failed to open key value store at %s: %+v"
)

// KV stores versioned objects under prefixed keys.
type KV struct {
	data   ekv.KeyValue
	prefix string
}

// NewKV returns a KV backed by the store.
func NewKV(data ekv.KeyValue) *KV {
	return &KV{data: data}
}

// NewMemKV returns a KV backed by an in-memory store.
func NewMemKV() *KV {
	return NewKV(ekv.MakeMemstore())
}

// NewFileKV returns a KV backed by an encrypted file store in the directory.
func NewFileKV(baseDir, password string) (*KV, error) {
	fs, err := ekv.NewFilestore(baseDir, password)
	if err != nil {
		return nil, errors.Errorf(openFilestoreErr, baseDir, err)
	}
	jww.INFO.Printf("[KV] Opened file store at %s", baseDir)
	return NewKV(fs), nil
}

// Get returns the object stored at the key and version.
func (v *KV) Get(key string, version uint64) (*Object, error) {
	key = v.makeKey(key, version)
	jww.TRACE.Printf("[KV] Get %s", key)

	result := Object{}
	if err := v.data.Get(key, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Set upserts the object at the key and the object's version.
func (v *KV) Set(key string, object *Object) error {
	key = v.makeKey(key, object.Version)
	jww.TRACE.Printf("[KV] Set %s", key)
	return v.data.Set(key, object)
}

// Delete removes the key and version from the store.
func (v *KV) Delete(key string, version uint64) error {
	key = v.makeKey(key, version)
	jww.TRACE.Printf("[KV] Delete %s", key)
	return v.data.Delete(key)
}

// Prefix returns a KV whose keys are nested under the prefix.
func (v *KV) Prefix(prefix string) *KV {
	return &KV{
		data:   v.data,
		prefix: v.prefix + prefix + PrefixSeparator,
	}
}

// GetPrefix returns the prefix of the KV.
func (v *KV) GetPrefix() string {
	return v.prefix
}

// IsMemStore returns true if the KV is backed by memory only.
func (v *KV) IsMemStore() bool {
	_, success := v.data.(*ekv.Memstore)
	return success
}

// GetFullKey returns the key with all prefixes and the version appended.
func (v *KV) GetFullKey(key string, version uint64) string {
	return v.makeKey(key, version)
}

// Exists returns false if the error indicates the element doesn't exist.
func (v *KV) Exists(err error) bool {
	return ekv.Exists(err)
}

func (v *KV) makeKey(key string, version uint64) string {
	return fmt.Sprintf("%s%s_%d", v.prefix, key, version)
}
