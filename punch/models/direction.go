package models

import "fmt"

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionIn, DirectionOut:
		return Direction(s), nil
	}
	return "", fmt.Errorf("unknown punch direction %q", s)
}

// Field returns the multipart field name for this direction, e.g.
// Field("lat") is "in_lat" for a punch-in.
func (d Direction) Field(name string) string {
	return string(d) + "_" + name
}

// Route is the API path a punch in this direction is posted to.
func (d Direction) Route() string {
	return "punch/" + string(d)
}

func (d Direction) Opposite() Direction {
	if d == DirectionIn {
		return DirectionOut
	}
	return DirectionIn
}

func (d Direction) String() string {
	return string(d)
}
