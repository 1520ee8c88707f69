////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package versioned

import (
	"encoding/json"
	"fmt"
	"time"

	"gitlab.com/xx_network/primitives/netTime"
)

// Object is the stored form of a value with its version and write time.
type Object struct {
	Version   uint64
	Timestamp time.Time
	Data      []byte
}

// NewObject returns an Object holding the data, stamped with the current
// time.
func NewObject(version uint64, data []byte) *Object {
	return &Object{
		Version:   version,
		Timestamp: netTime.Now(),
		Data:      data,
	}
}

// Unmarshal deserializes an Object from a byte slice. It adheres to the
// ekv.Unmarshaler interface.
func (v *Object) Unmarshal(data []byte) error {
	return json.Unmarshal(data, v)
}

// Marshal serializes the Object. It adheres to the ekv.Marshaler interface.
func (v *Object) Marshal() []byte {
	d, err := json.Marshal(v)
	// Every field has a simple type
	if err != nil {
		panic(fmt.Sprintf("Could not marshal: %+v", v))
	}
	return d
}
