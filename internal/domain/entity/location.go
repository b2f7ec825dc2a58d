package entity

import "time"

// Location representa una ubicación física donde se almacena inventario.
type Location struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
