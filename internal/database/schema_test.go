package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMigrationFilesExist(t *testing.T) {
	migrationsDir := "../../migrations"

	// Check if migrations directory exists
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		t.Fatal("Migrations directory does not exist")
	}

	// Expected migration files
	expectedMigrations := []string{
		"00001_create_tenants_table.sql",
		"00002_create_catalog_items_table.sql",
		"00003_create_bundle_templates_table.sql",
		"00004_create_bundle_instances_table.sql",
		"00005_create_updated_at_trigger.sql",
	}

	for _, migration := range expectedMigrations {
		path := filepath.Join(migrationsDir, migration)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Errorf("Migration file %s does not exist", migration)
		}
	}
}

func TestMigrationFilesHaveUpAndDown(t *testing.T) {
	migrationsDir := "../../migrations"

	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("Failed to read migrations directory: %v", err)
	}

	sqlFileCount := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		sqlFileCount++
		content, err := os.ReadFile(filepath.Join(migrationsDir, file.Name()))
		if err != nil {
			t.Errorf("Failed to read migration file %s: %v", file.Name(), err)
			continue
		}

		contentStr := string(content)

		// Check for goose Up directive
		if !strings.Contains(contentStr, "-- +goose Up") {
			t.Errorf("Migration file %s missing '-- +goose Up' directive", file.Name())
		}

		// Check for goose Down directive
		if !strings.Contains(contentStr, "-- +goose Down") {
			t.Errorf("Migration file %s missing '-- +goose Down' directive", file.Name())
		}
	}

	if sqlFileCount == 0 {
		t.Error("No SQL migration files found")
	}
}

func TestMigrationFilesCreateExpectedTables(t *testing.T) {
	migrationsDir := "../../migrations"

	expectedTables := map[string]string{
		"tenants":          "00001_create_tenants_table.sql",
		"catalog_items":    "00002_create_catalog_items_table.sql",
		"bundle_templates": "00003_create_bundle_templates_table.sql",
		"bundle_instances": "00004_create_bundle_instances_table.sql",
	}

	for tableName, migrationFile := range expectedTables {
		path := filepath.Join(migrationsDir, migrationFile)
		content, err := os.ReadFile(path)
		if err != nil {
			t.Errorf("Failed to read migration file %s: %v", migrationFile, err)
			continue
		}

		contentStr := string(content)

		// Check if migration creates the table
		createTableStmt := "CREATE TABLE IF NOT EXISTS " + tableName
		if !strings.Contains(contentStr, createTableStmt) {
			t.Errorf("Migration file %s does not create table %s", migrationFile, tableName)
		}

		// Check if migration has drop table in down section
		dropTableStmt := "DROP TABLE IF EXISTS " + tableName
		if !strings.Contains(contentStr, dropTableStmt) {
			t.Errorf("Migration file %s does not drop table %s in down section", migrationFile, tableName)
		}
	}
}

func TestCatalogItemsTableHasRequiredColumns(t *testing.T) {
	migrationsDir := "../../migrations"
	path := filepath.Join(migrationsDir, "00002_create_catalog_items_table.sql")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read catalog_items migration: %v", err)
	}

	contentStr := string(content)
	requiredColumns := []string{
		"id UUID PRIMARY KEY",
		"tenant_id UUID",
		"external_id BIGINT",
		"title VARCHAR",
		"tags JSONB",
		"price DECIMAL",
		"compare_at_price DECIMAL",
		"stock_quantity INTEGER",
		"is_active BOOLEAN",
		"variants JSONB",
		"last_synced_at TIMESTAMP",
		"created_at TIMESTAMP",
		"updated_at TIMESTAMP",
	}

	for _, column := range requiredColumns {
		if !strings.Contains(contentStr, column) {
			t.Errorf("Catalog items table missing required column definition: %s", column)
		}
	}

	// Check for foreign key constraint
	if !strings.Contains(contentStr, "FOREIGN KEY (tenant_id)") {
		t.Error("Catalog items table missing foreign key constraint to tenants")
	}

	// One row per product per shop
	if !strings.Contains(contentStr, "UNIQUE (tenant_id, external_id)") {
		t.Error("Catalog items table missing unique constraint on (tenant_id, external_id)")
	}
}

func TestBundleTemplatesTableHasRangeConstraints(t *testing.T) {
	migrationsDir := "../../migrations"
	path := filepath.Join(migrationsDir, "00003_create_bundle_templates_table.sql")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read bundle_templates migration: %v", err)
	}

	contentStr := string(content)

	if !strings.Contains(contentStr, "min_value <= max_value") {
		t.Error("Bundle templates table missing value range check constraint")
	}

	if !strings.Contains(contentStr, "min_items <= max_items") {
		t.Error("Bundle templates table missing item range check constraint")
	}
}

func TestBundleInstancesTableHasStatusConstraint(t *testing.T) {
	migrationsDir := "../../migrations"
	path := filepath.Join(migrationsDir, "00004_create_bundle_instances_table.sql")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read bundle_instances migration: %v", err)
	}

	contentStr := string(content)

	// Check for status constraint with valid values
	requiredStatuses := []string{"draft", "published", "sold"}
	for _, status := range requiredStatuses {
		if !strings.Contains(contentStr, status) {
			t.Errorf("Bundle instances table status constraint missing value: %s", status)
		}
	}
}

func TestTenantsTableHasUniqueShopDomain(t *testing.T) {
	migrationsDir := "../../migrations"
	path := filepath.Join(migrationsDir, "00001_create_tenants_table.sql")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read tenants migration: %v", err)
	}

	if !strings.Contains(string(content), "shop_domain VARCHAR(255) UNIQUE") {
		t.Error("Tenants table missing unique constraint on shop_domain")
	}
}
