package db

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

type fakeNetError struct{}

func (fakeNetError) Error() string   { return "broken pipe" }
func (fakeNetError) Timeout() bool   { return false }
func (fakeNetError) Temporary() bool { return true }

var _ net.Error = fakeNetError{}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"wrapped connection failure", fmt.Errorf("query: %w", &pgconn.PgError{Code: "08000"}), true},
		{"net error", fakeNetError{}, true},
		{"eof", io.EOF, true},
		{"unexpected eof", fmt.Errorf("read: %w", io.ErrUnexpectedEOF), true},
		{"dead pgx conn", errors.New("conn closed"), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"syntax error", &pgconn.PgError{Code: "42601"}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConnectionError(tt.err); got != tt.want {
				t.Errorf("IsConnectionError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsDataError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"not null violation", &pgconn.PgError{Code: "23502"}, true},
		{"invalid datetime", &pgconn.PgError{Code: "22007"}, true},
		{"wrapped data error", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "22P02"}), true},
		{"connection failure", &pgconn.PgError{Code: "08006"}, false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDataError(tt.err); got != tt.want {
				t.Errorf("IsDataError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestMeasurementUndefined(t *testing.T) {
	defined := Measurement{DateObs: "2004-10-25T03:46:12.23", Filename: "a.fits", SHK: 0.17, ESHK: 0.01}
	if defined.Undefined() {
		t.Error("finite measurement reported as undefined")
	}

	nan := Measurement{
		DateObs:  "2004-10-25T03:46:12.23",
		Filename: "a.fits",
		SHK:      math.NaN(),
		ESHK:     math.NaN(),
	}
	if !nan.Undefined() {
		t.Error("NaN measurement not reported as undefined")
	}
}
