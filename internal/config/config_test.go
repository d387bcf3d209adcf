package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/tickets/internal/apperr"
)

// envMap returns a lookup function backed by m.
func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadFrom(envMap(nil))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("Store.Driver = %q, want %q", cfg.Store.Driver, "memory")
	}
	if cfg.Run.FilePath != "data" {
		t.Errorf("Run.FilePath = %q, want %q", cfg.Run.FilePath, "data")
	}
	if cfg.Run.OutputDir != "out" {
		t.Errorf("Run.OutputDir = %q, want %q", cfg.Run.OutputDir, "out")
	}
	if cfg.Run.TopN != 5 {
		t.Errorf("Run.TopN = %d, want %d", cfg.Run.TopN, 5)
	}
	if cfg.Run.MaxFileSize != 104857600 {
		t.Errorf("Run.MaxFileSize = %d, want %d", cfg.Run.MaxFileSize, 104857600)
	}
	if cfg.Logging.ErrorFile != "out/logs/errors.log" {
		t.Errorf("Logging.ErrorFile = %q", cfg.Logging.ErrorFile)
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	cfg, err := LoadFrom(envMap(map[string]string{
		"SERVER_PORT":        "9090",
		"RUN_MAX_CONCURRENT": "10",
		"LOG_LEVEL":          "debug",
		"TICKETS_TOP_N":      "3",
		"RUN_MAX_WAIT":       "1m30s",
	}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Run.MaxConcurrent != 10 {
		t.Errorf("Run.MaxConcurrent = %d, want %d", cfg.Run.MaxConcurrent, 10)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Run.TopN != 3 {
		t.Errorf("Run.TopN = %d, want %d", cfg.Run.TopN, 3)
	}
	if cfg.Run.MaxWait != 90*time.Second {
		t.Errorf("Run.MaxWait = %v, want %v", cfg.Run.MaxWait, 90*time.Second)
	}
}

func TestLoad_FromProcessEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 7070)
	}
}

func TestLoad_AltEnvVar(t *testing.T) {
	cfg, err := LoadFrom(envMap(map[string]string{
		"STORE_DRIVER": "postgres",
		"DB_URL":       "postgres://localhost/alttest",
	}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Store.DatabaseURL != "postgres://localhost/alttest" {
		t.Errorf("Store.DatabaseURL = %q, want %q", cfg.Store.DatabaseURL, "postgres://localhost/alttest")
	}
	if cfg.Store.DSN() != "postgres://localhost/alttest" {
		t.Errorf("Store.DSN() = %q", cfg.Store.DSN())
	}
}

func TestLoad_PostgresRequiresURL(t *testing.T) {
	_, err := LoadFrom(envMap(map[string]string{"STORE_DRIVER": "postgres"}))
	if err == nil {
		t.Fatal("LoadFrom() expected error for postgres without DATABASE_URL")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL is required") {
		t.Errorf("error = %v", err)
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	_, err := LoadFrom(envMap(map[string]string{"SERVER_PORT": "eighty"}))
	if err == nil {
		t.Fatal("LoadFrom() expected error for non-numeric port")
	}
	if !strings.Contains(err.Error(), "SERVER_PORT") {
		t.Errorf("error should name the variable, got %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{Port: 99999, ShutdownTimeout: time.Second},
		Store:   StoreConfig{Driver: "mongo"},
		Run:     RunConfig{TopN: -1, MaxFileSize: 1, MaxConcurrent: 1, MaxWait: time.Second, Timeout: time.Minute},
		Logging: LoggingConfig{Level: "loud", Format: "text"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}

	for _, want := range []string{"SERVER_PORT", "STORE_DRIVER", "TICKETS_TOP_N", "LOG_LEVEL"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error missing %q: %v", want, err)
		}
	}
}

func TestString_MasksDatabaseURL(t *testing.T) {
	cfg := &Config{Store: StoreConfig{Driver: "postgres", DatabaseURL: "postgres://user:secret@db/x"}}

	s := cfg.String()
	if strings.Contains(s, "secret") {
		t.Errorf("String() leaked the database URL: %s", s)
	}
}

func TestServerAddr(t *testing.T) {
	c := ServerConfig{Host: "127.0.0.1", Port: 8080}
	if got := c.Addr(); got != "127.0.0.1:8080" {
		t.Errorf("Addr() = %q", got)
	}
}

func TestRunOptions_Resolve(t *testing.T) {
	dir := t.TempDir()
	barcodes := filepath.Join(dir, "barcodes.csv")
	orders := filepath.Join(dir, "orders.csv")
	for _, p := range []string{barcodes, orders} {
		if err := os.WriteFile(p, []byte("x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name        string
		opts        RunOptions
		wantErr     string
		wantBarcode string
	}{
		{
			name:        "relative names resolve under file path",
			opts:        RunOptions{BarcodesFile: "barcodes.csv", OrdersFile: "orders.csv", FilePath: dir, OutputDir: "out", TopN: 5},
			wantBarcode: barcodes,
		},
		{
			name:        "absolute names are used as is",
			opts:        RunOptions{BarcodesFile: barcodes, OrdersFile: orders, FilePath: "elsewhere", OutputDir: "out", TopN: 0},
			wantBarcode: barcodes,
		},
		{
			name:    "missing barcodes file",
			opts:    RunOptions{BarcodesFile: "nope.csv", OrdersFile: "orders.csv", FilePath: dir, OutputDir: "out"},
			wantErr: "Unable to find given 'barcodes_file' file nope.csv.",
		},
		{
			name:    "missing orders file",
			opts:    RunOptions{BarcodesFile: "barcodes.csv", OrdersFile: "nope.csv", FilePath: dir, OutputDir: "out"},
			wantErr: "Unable to find given 'orders_file' file nope.csv.",
		},
		{
			name:    "negative top n",
			opts:    RunOptions{BarcodesFile: "barcodes.csv", OrdersFile: "orders.csv", FilePath: dir, OutputDir: "out", TopN: -2},
			wantErr: "invalid option: top_n must be >= 0",
		},
		{
			name:    "empty name",
			opts:    RunOptions{OrdersFile: "orders.csv", FilePath: dir, OutputDir: "out"},
			wantErr: "barcodes_file is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.opts.Resolve()

			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("Resolve() expected error containing %q", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("Resolve() error = %q, want it to contain %q", err.Error(), tt.wantErr)
				}
				var ce *apperr.ConfigError
				if !errors.As(err, &ce) {
					t.Errorf("Resolve() error type = %T, want *apperr.ConfigError", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got.BarcodesPath != tt.wantBarcode {
				t.Errorf("BarcodesPath = %q, want %q", got.BarcodesPath, tt.wantBarcode)
			}
			if got.TopN != tt.opts.TopN {
				t.Errorf("TopN = %d, want %d", got.TopN, tt.opts.TopN)
			}
		})
	}
}
