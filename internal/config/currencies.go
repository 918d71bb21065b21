package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"ledger-sync-go/internal/models"
)

type currenciesFile struct {
	Currencies []models.Currency `yaml:"currencies"`
}

// LoadCurrencies reads the currency reference definitions used to seed the
// local currencies table and format amounts.
func LoadCurrencies(file string) ([]models.Currency, error) {
	var path string
	if filepath.IsAbs(file) {
		path = file
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		path = filepath.Join(wd, file)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", file, err)
	}

	var parsed currenciesFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", file, err)
	}

	for i, c := range parsed.Currencies {
		if len(c.Code) != 3 {
			return nil, fmt.Errorf("currency at index %d has invalid code %q", i, c.Code)
		}
		if c.Symbol == "" {
			return nil, fmt.Errorf("currency %s missing symbol", c.Code)
		}
		if c.DecimalDigits < 0 || c.DecimalDigits > 8 {
			return nil, fmt.Errorf("currency %s has unsupported decimal_digits %d", c.Code, c.DecimalDigits)
		}
	}

	return parsed.Currencies, nil
}

// DefaultCurrencies is the built-in fallback when no currencies file exists.
func DefaultCurrencies() []models.Currency {
	return []models.Currency{
		{Code: "USD", Symbol: "$", Name: "US Dollar", DecimalDigits: 2},
		{Code: "EUR", Symbol: "€", Name: "Euro", DecimalDigits: 2},
		{Code: "PEN", Symbol: "S/", Name: "Peruvian Sol", DecimalDigits: 2},
		{Code: "JPY", Symbol: "¥", Name: "Japanese Yen", DecimalDigits: 0},
	}
}
