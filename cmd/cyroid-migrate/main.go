// Command cyroid-migrate bootstraps or upgrades a cyroid.db repository
// file: back it up when buckets are missing, then open it through
// pkg/repository so any bucket a newer binary expects but an older
// database lacks gets created.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cyroid/cyroid/pkg/repository"
	"github.com/spf13/cobra"
	bolt "go.etcd.io/bbolt"
)

// bucketNames mirrors pkg/repository/boltdb.go's bucket list. Kept as a
// plain literal here rather than exported from pkg/repository, since this
// tool only needs to report on bucket presence, not touch their contents.
var bucketNames = []string{
	"principals", "ranges", "networks", "vm_templates", "vms", "snapshots",
	"artifacts", "artifact_placements", "msels", "injects", "resource_tags",
	"event_log", "connections", "ca",
}

var (
	dataDir    string
	dryRun     bool
	backupPath string
)

var rootCmd = &cobra.Command{
	Use:   "cyroid-migrate",
	Short: "Back up and schema-bootstrap a cyroid repository database",
	RunE:  runMigrate,
}

func init() {
	rootCmd.Flags().StringVar(&dataDir, "data-dir", "./cyroid-data", "cyroid data directory containing cyroid.db")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing anything")
	rootCmd.Flags().StringVar(&backupPath, "backup", "", "backup file path (default: <data-dir>/cyroid.db.backup)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	dbPath := filepath.Join(dataDir, "cyroid.db")

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		if dryRun {
			fmt.Printf("[dry run] no database at %s, a fresh one would be created\n", dbPath)
			return nil
		}
		fmt.Printf("no database at %s, a fresh one will be created\n", dbPath)
	} else {
		existing, missing, err := inspectBuckets(dbPath)
		if err != nil {
			return fmt.Errorf("inspect %s: %w", dbPath, err)
		}
		fmt.Printf("%s: %d/%d buckets present\n", dbPath, len(existing), len(bucketNames))
		if len(missing) == 0 {
			fmt.Println("schema is already current")
		} else {
			fmt.Printf("missing buckets: %v\n", missing)
		}

		if dryRun {
			if len(missing) > 0 {
				fmt.Println("[dry run] would create the missing buckets above and exit")
			}
			return nil
		}

		backup := backupPath
		if backup == "" {
			backup = dbPath + ".backup"
		}
		if len(missing) > 0 {
			fmt.Printf("backing up to %s\n", backup)
			if err := copyFile(dbPath, backup); err != nil {
				return fmt.Errorf("backup %s: %w", dbPath, err)
			}
		}
	}

	repo, err := repository.NewBoltRepository(dataDir)
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	defer repo.Close()

	fmt.Println("schema bootstrap complete")
	return nil
}

// inspectBuckets opens dbPath read-only and reports which of bucketNames
// exist and which are missing.
func inspectBuckets(dbPath string) (existing, missing []string, err error) {
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{ReadOnly: true})
	if err != nil {
		return nil, nil, err
	}
	defer db.Close()

	err = db.View(func(tx *bolt.Tx) error {
		for _, name := range bucketNames {
			if tx.Bucket([]byte(name)) != nil {
				existing = append(existing, name)
			} else {
				missing = append(missing, name)
			}
		}
		return nil
	})
	return existing, missing, err
}

func copyFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, input, 0600)
}
