package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/quadra-edu/sisapi/internal/http"
	"github.com/quadra-edu/sisapi/pkg/sisapi"
)

// FeesClient implements sisapi.FeesClient.
type FeesClient struct {
	client *Client
}

// Post writes one fee entry to a student account. The amount is a
// finance string such as "$100.07"; a negative amount posts a payment
// instead of a charge.
func (f *FeesClient) Post(ctx context.Context, entry *sisapi.FeeEntry, opts *sisapi.FetchOptions) (sisapi.Record, error) {
	if entry == nil {
		return nil, &sisapi.ValidationError{Field: "entry", Reason: "must not be nil"}
	}

	studentID, err := sisapi.CleanID(entry.StudentID)
	if err != nil {
		return nil, err
	}

	categoryID, err := sisapi.CleanID(entry.CategoryID)
	if err != nil {
		return nil, err
	}

	amount, err := parseFinance(entry.Amount)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("studentId", studentID)
	form.Set("categoryId", categoryID)
	form.Set("date", entry.Date)

	if amount < 0 {
		form.Set("amount", strconv.FormatFloat(-amount, 'f', 2, 64))
		form.Set("isPayment", "true")
	} else {
		form.Set("amount", strconv.FormatFloat(amount, 'f', 2, 64))
	}

	if entry.Description != "" {
		form.Set("description", entry.Description)
	}

	return f.client.fetchRecord(ctx, &http.Request{
		Description: "POST fee",
		Method:      "POST",
		URI:         "/fees",
		Form:        form,
	}, opts.Normalize())
}

// parseFinance converts a finance string like "$1,100.07" or "-$5.00"
// to its numeric value.
func parseFinance(amount string) (float64, error) {
	cleaned := strings.TrimSpace(amount)
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	if cleaned == "" {
		return 0, &sisapi.ValidationError{Field: "amount", Reason: "must not be empty"}
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, &sisapi.ValidationError{
			Field:  "amount",
			Reason: fmt.Sprintf("%q is not a finance amount", amount),
		}
	}

	return value, nil
}
