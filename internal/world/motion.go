package world

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Viewport is the display area reported by a display's bounds message.
type Viewport struct {
	Width  float64
	Height float64
}

// Field is the logical plane entities move in. Scale is the number of motion
// units per field unit.
type Field struct {
	Width  float64
	Height float64
	Scale  float64
}

// Motion is a controller tilt sample. Only Y and Z move the plane.
type Motion struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

// MotionInput carries everything a motion mapping reads.
type MotionInput struct {
	X, Y     float64    // current screen position
	Pos      mgl64.Vec3 // current entity position
	Motion   Motion
	Viewport Viewport
	Field    Field
}

// MotionResult is the new plane state after a motion sample.
type MotionResult struct {
	X, Y   float64
	TX, TY float64
	Pos    mgl64.Vec3
}

// MotionMapper is an alternative mapping, typically scripted. ok=false means
// the mapper could not produce a result and MapMotion should be used.
type MotionMapper interface {
	MapMotion(in MotionInput) (res MotionResult, ok bool)
}

// MapMotion moves the screen marker by the raw tilt, clamped to the viewport,
// and aims its target further along the tilt. The entity moves by the tilt
// divided by the field scale, clamped to the field; screen z grows downward
// so entity y moves against it. Entities stay on z = 0.
func MapMotion(in MotionInput) MotionResult {
	m := in.Motion
	hw, hh := in.Viewport.Width/2, in.Viewport.Height/2
	x := mgl64.Clamp(in.X+m.Y, -hw, hw)
	y := mgl64.Clamp(in.Y+m.Z, -hh, hh)

	fw, fh := in.Field.Width/2, in.Field.Height/2
	scale := in.Field.Scale
	if scale == 0 {
		scale = 1
	}
	pos := mgl64.Vec3{
		mgl64.Clamp(in.Pos.X()+m.Y/scale, -fw, fw),
		mgl64.Clamp(in.Pos.Y()-m.Z/scale, -fh, fh),
		0,
	}
	return MotionResult{X: x, Y: y, TX: x + m.Y*3, TY: y + m.Z*5, Pos: pos}
}
