package provider

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// PlaneType classifies the surface a hit test landed on.
type PlaneType int

const (
	PlaneHorizontalUpward PlaneType = iota
	PlaneHorizontalDownward
	PlaneVertical
)

func (p PlaneType) String() string {
	switch p {
	case PlaneHorizontalUpward:
		return "horizontal_upward_facing"
	case PlaneHorizontalDownward:
		return "horizontal_downward_facing"
	case PlaneVertical:
		return "vertical"
	default:
		return fmt.Sprintf("plane(%d)", int(p))
	}
}

// Pose is a translation plus a unit quaternion, in metres.
type Pose struct {
	Tx float64 `cbor:"1,keyasint"`
	Ty float64 `cbor:"2,keyasint"`
	Tz float64 `cbor:"3,keyasint"`
	Qx float64 `cbor:"4,keyasint"`
	Qy float64 `cbor:"5,keyasint"`
	Qz float64 `cbor:"6,keyasint"`
	Qw float64 `cbor:"7,keyasint"`
}

// Translation returns a pose at (x, y, z) with identity rotation.
func Translation(x, y, z float64) Pose {
	return Pose{Tx: x, Ty: y, Tz: z, Qw: 1}
}

// HitResult is where a tap intersected tracked geometry.
type HitResult struct {
	Plane PlaneType
	Pose  Pose
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// Core deterministic encoding: the same pose always yields the same blob.
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("provider: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("provider: CBOR decoder initialization failed: " + err.Error())
	}
}

// EncodePose is the blob format of the cloud_anchors table.
func EncodePose(p Pose) ([]byte, error) {
	return encMode.Marshal(p)
}

func DecodePose(data []byte) (Pose, error) {
	var p Pose
	if err := decMode.Unmarshal(data, &p); err != nil {
		return Pose{}, fmt.Errorf("decode pose: %w", err)
	}
	return p, nil
}
