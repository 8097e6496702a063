// The dfisim command runs a DDR controller simulation: it trains the PHY,
// plays a write and read workload through the controller, and records the
// signal trace into a SQLite database.
package main

import (
	"github.com/joho/godotenv"
	"github.com/tebeka/atexit"
)

func main() {
	// Flags can also come from a .env file in the working directory.
	godotenv.Load()

	Execute()

	atexit.Exit(0)
}
