// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/tomtom215/signalcart/internal/apperr"
)

type trainBody struct {
	ForceRetrainAll *bool  `json:"force_retrain_all" validate:"required"`
	VersionTag      string `json:"model_version_tag" validate:"omitempty,version_tag"`
}

type recordBody struct {
	ProductID       int64  `json:"productId" validate:"required,gt=0"`
	InteractionType string `json:"interactionType" validate:"required,interaction_type"`
	Note            string `json:"note" validate:"max=5"`
}

func TestGetValidatorSingleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator() returned different instances")
	}
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()
	yes := true

	tests := []struct {
		name      string
		input     any
		wantField string
		wantMsg   string
	}{
		{"valid train", &trainBody{ForceRetrainAll: &yes, VersionTag: "v1"}, "", ""},
		{"missing force flag", &trainBody{}, "force_retrain_all", "force_retrain_all is required"},
		{"blank tag", &trainBody{ForceRetrainAll: &yes, VersionTag: "   "}, "", ""},
		{"padded max tag", &trainBody{ForceRetrainAll: &yes, VersionTag: " " + strings.Repeat("é", 255) + " "}, "", ""},
		{"long tag", &trainBody{ForceRetrainAll: &yes, VersionTag: strings.Repeat("é", 256)}, "model_version_tag", "model_version_tag must be at most 255 characters"},
		{"lowercase kind", &recordBody{ProductID: 3, InteractionType: "purchase"}, "", ""},
		{"bad kind", &recordBody{ProductID: 3, InteractionType: "WISHLIST"}, "interactionType", "interactionType must be one of CLICK, ADD_TO_CART, PURCHASE"},
		{"zero product", &recordBody{InteractionType: "CLICK"}, "productId", "productId is required"},
		{"negative product", &recordBody{ProductID: -1, InteractionType: "CLICK"}, "productId", "productId must be greater than 0"},
		{"long note", &recordBody{ProductID: 1, InteractionType: "CLICK", Note: "toolong"}, "note", "note must be at most 5 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateStruct(tt.input)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("ValidateStruct() error = %v", err)
				}
				return
			}
			var ve *RequestValidationError
			if !errors.As(err, &ve) || len(ve.Fields) != 1 {
				t.Fatalf("ValidateStruct() error = %v, want one field error", err)
			}
			if ve.Fields[0].Field != tt.wantField {
				t.Errorf("Field = %q, want %q", ve.Fields[0].Field, tt.wantField)
			}
			if tt.wantMsg != "" && ve.Fields[0].Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", ve.Fields[0].Message, tt.wantMsg)
			}
			if !errors.Is(err, apperr.ErrValidation) {
				t.Error("errors.Is(err, ErrValidation) = false")
			}
		})
	}
}

func TestRequestValidationErrorDetails(t *testing.T) {
	t.Parallel()
	err := ValidateStruct(&recordBody{})
	var ve *RequestValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("ValidateStruct() error = %v", err)
	}
	if len(ve.Fields) != 2 {
		t.Fatalf("Fields = %+v, want 2", ve.Fields)
	}
	if _, ok := ve.Details()["fields"]; !ok {
		t.Errorf("Details() = %v, want a fields list", ve.Details())
	}
	if !strings.Contains(ve.Error(), "; ") {
		t.Errorf("Error() = %q, want joined messages", ve.Error())
	}
}
