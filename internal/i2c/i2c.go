// Package i2c is a small register-level I2C transport for sensor drivers.
package i2c

import "fmt"

// BusPath returns the character device of bus n.
func BusPath(n int) string {
	return fmt.Sprintf("/dev/i2c-%d", n)
}
