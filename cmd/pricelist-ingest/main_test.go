package main

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    rule
		wantErr bool
	}{
		{
			name: "customer scope with both prices",
			line: "wash-shirt,customer,c1,8.00,0.50",
			want: rule{offeringID: "wash-shirt", customerID: "c1"},
		},
		{
			name: "type scope with unit price only",
			line: "wash-shirt,type,hotels,8.00,",
			want: rule{offeringID: "wash-shirt", customerTypeID: "hotels"},
		},
		{
			name: "fields are trimmed",
			line: " wash-shirt , customer , c1 , 8.00 ,",
			want: rule{offeringID: "wash-shirt", customerID: "c1"},
		},
		{name: "too few fields", line: "wash-shirt,customer,c1,8.00", wantErr: true},
		{name: "unknown scope", line: "wash-shirt,region,eu,8.00,", wantErr: true},
		{name: "empty offering id", line: ",customer,c1,8.00,", wantErr: true},
		{name: "empty scope id", line: "wash-shirt,customer,,8.00,", wantErr: true},
		{name: "no price at all", line: "wash-shirt,customer,c1,,", wantErr: true},
		{name: "malformed price", line: "wash-shirt,customer,c1,eight,", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := parseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.offeringID, r.offeringID)
			assert.Equal(t, tt.want.customerID, r.customerID)
			assert.Equal(t, tt.want.customerTypeID, r.customerTypeID)
		})
	}
}

func TestDedupe_FirstOccurrenceWins(t *testing.T) {
	first := rule{offeringID: "wash-shirt", customerID: "c1", unitPrice: decPtr("8.00")}
	later := rule{offeringID: "wash-shirt", customerID: "c1", unitPrice: decPtr("6.00")}
	other := rule{offeringID: "wash-shirt", customerID: "c2", unitPrice: decPtr("7.00")}

	out := dedupe([][]rule{
		{first, later},
		{later, other},
	})

	require.Len(t, out, 2)
	assert.True(t, first.unitPrice.Equal(*out[0].unitPrice), "first occurrence must win")
	assert.Equal(t, "c2", out[1].customerID)
}

func TestDedupe_ScopeKindsAreDistinctKeys(t *testing.T) {
	// A customer rule and a type rule sharing the same scope identifier are
	// different rules.
	out := dedupe([][]rule{{
		{offeringID: "wash-shirt", customerID: "hotels", unitPrice: decPtr("8.00")},
		{offeringID: "wash-shirt", customerTypeID: "hotels", unitPrice: decPtr("9.00")},
	}})

	assert.Len(t, out, 2)
}

func TestDedupe_PreservesFileOrder(t *testing.T) {
	out := dedupe([][]rule{
		{{offeringID: "a", customerID: "c1", unitPrice: decPtr("1")}},
		{{offeringID: "b", customerID: "c1", unitPrice: decPtr("2")}},
	})

	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].offeringID)
	assert.Equal(t, "b", out[1].offeringID)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
