/*
bus.go Representation of a single carrier bus. A bus holds no balance logic of
its own; the model assembler generates one balance row per bus per timestep.
*/

package bus

import (
	"github.com/google/uuid"
)

// Bus is a balance point for one energy carrier.
type Bus struct {
	pid     uuid.UUID
	name    string
	carrier Carrier
}

// PID is an accessor for the bus process id.
func (b *Bus) PID() uuid.UUID {
	return b.pid
}

// Name is an accessor for the bus's configured name.
func (b *Bus) Name() string {
	return b.name
}

// Carrier is an accessor for the carrier the bus balances.
func (b *Bus) Carrier() Carrier {
	return b.carrier
}

// Port is one attachment of a unit to a bus.
type Port struct {
	Bus  *Bus
	Role Role
}
