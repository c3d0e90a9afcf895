package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// envReader reads typed settings. Unset or empty keys give the default; a
// value that does not parse also gives the default and is recorded so Load
// can reject it.
type envReader struct {
	errs []error
}

func readEnv[T any](r *envReader, key string, def T, parse func(string) (T, error)) T {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return def
	}
	v, err := parse(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s=%q: %w", key, value, err))
		return def
	}
	return v
}

func (r *envReader) String(key, def string) string {
	return readEnv(r, key, def, func(s string) (string, error) { return s, nil })
}

func (r *envReader) Int(key string, def int) int {
	return readEnv(r, key, def, strconv.Atoi)
}

func (r *envReader) Bool(key string, def bool) bool {
	return readEnv(r, key, def, strconv.ParseBool)
}

func (r *envReader) Float(key string, def float64) float64 {
	return readEnv(r, key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

// Err joins every parse failure seen so far.
func (r *envReader) Err() error {
	return errors.Join(r.errs...)
}
