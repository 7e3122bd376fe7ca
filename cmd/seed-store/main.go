// seed-store creates a store and its first gateway device, printing the
// device API key exactly once. Only the key's SHA-256 digest is stored.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  go run ./cmd/seed-store --store "Main St" --timezone America/Chicago --device "Register 1"
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/forecourtlabs/pos_backend/config"
	"github.com/forecourtlabs/pos_backend/models"
)

func main() {
	storeName := flag.String("store", "", "store name")
	timezone := flag.String("timezone", "UTC", "store IANA timezone")
	deviceName := flag.String("device", "gateway", "device name")
	flag.Parse()

	if *storeName == "" {
		fmt.Fprintln(os.Stderr, "--store is required")
		os.Exit(2)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	store, err := models.CreateStore(ctx, &models.NewStore{
		Name:     *storeName,
		Timezone: *timezone,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create store: %v\n", err)
		os.Exit(1)
	}

	device, apiKey, err := models.CreateDevice(ctx, &models.NewDevice{
		StoreId: store.ID,
		Name:    *deviceName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create device: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("store_id:  %s\n", store.ID)
	fmt.Printf("device_id: %s\n", device.ID)
	fmt.Printf("api_key:   %s\n", apiKey)
	fmt.Println("Store this key now; it cannot be recovered later.")
}
