package services_test

import (
	"context"
	"testing"

	"recast/internal/services"
)

func TestConversionIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	if _, ok := services.ConversionIDFromContext(ctx); ok {
		t.Fatal("expected no conversion id on empty context")
	}
	ctx = services.WithConversionID(ctx, "abc-123")
	id, ok := services.ConversionIDFromContext(ctx)
	if !ok || id != "abc-123" {
		t.Fatalf("expected abc-123, got %q ok=%v", id, ok)
	}
}

func TestEmptyValuesAreNotStored(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithConversionID(ctx, "")
	ctx = services.WithProfile(ctx, "")
	ctx = services.WithStage(ctx, "")
	if _, ok := services.ConversionIDFromContext(ctx); ok {
		t.Fatal("empty conversion id should not be stored")
	}
	if _, ok := services.ProfileFromContext(ctx); ok {
		t.Fatal("empty profile should not be stored")
	}
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("empty stage should not be stored")
	}
}

func TestProfileAndStageRoundTrip(t *testing.T) {
	ctx := services.WithProfile(context.Background(), "webmhd")
	ctx = services.WithStage(ctx, "finalize")
	if profile, ok := services.ProfileFromContext(ctx); !ok || profile != "webmhd" {
		t.Fatalf("unexpected profile: %q ok=%v", profile, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "finalize" {
		t.Fatalf("unexpected stage: %q ok=%v", stage, ok)
	}
}
