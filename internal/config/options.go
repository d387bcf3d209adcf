package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/tickets/internal/apperr"
)

// RunOptions are the options of a single command line pipeline run.
type RunOptions struct {
	BarcodesFile string `validate:"required"`
	OrdersFile   string `validate:"required"`
	FilePath     string `validate:"required"`
	OutputDir    string `validate:"required"`
	TopN         int    `validate:"gte=0"`
	Debug        bool
}

// ResolvedOptions holds RunOptions with input names resolved to paths that
// exist.
type ResolvedOptions struct {
	BarcodesPath string
	OrdersPath   string
	OutputDir    string
	TopN         int
}

var validate = validator.New()

// Resolve validates the options and locates both input files. Relative
// names are looked up under FilePath; absolute names are used as is.
// Every failure is an *apperr.ConfigError.
func (o RunOptions) Resolve() (*ResolvedOptions, error) {
	if err := validate.Struct(o); err != nil {
		return nil, &apperr.ConfigError{Message: describe(err)}
	}

	barcodes, err := locate("barcodes_file", o.BarcodesFile, o.FilePath)
	if err != nil {
		return nil, err
	}
	orders, err := locate("orders_file", o.OrdersFile, o.FilePath)
	if err != nil {
		return nil, err
	}

	return &ResolvedOptions{
		BarcodesPath: barcodes,
		OrdersPath:   orders,
		OutputDir:    o.OutputDir,
		TopN:         o.TopN,
	}, nil
}

// ResolveInput returns the path for an input name: name itself when it is
// absolute, otherwise name under dir.
func ResolveInput(name, dir string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

func locate(option, name, dir string) (string, error) {
	path := ResolveInput(name, dir)

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", &apperr.ConfigError{
			Message: fmt.Sprintf("Unable to find given '%s' file %s.", option, name),
			Cause:   err,
		}
	}
	return path, nil
}

// describe turns validator errors into one readable line.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid option: " + err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", flagName(fe.Field())))
		case "gte":
			parts = append(parts, fmt.Sprintf("%s must be >= %s", flagName(fe.Field()), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", flagName(fe.Field()), fe.Tag()))
		}
	}
	return "invalid option: " + strings.Join(parts, "; ")
}

func flagName(field string) string {
	switch field {
	case "BarcodesFile":
		return "barcodes_file"
	case "OrdersFile":
		return "orders_file"
	case "FilePath":
		return "file_path"
	case "OutputDir":
		return "out_dir"
	case "TopN":
		return "top_n"
	default:
		return field
	}
}
