package services_test

import (
	"context"
	"testing"

	"engram/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, 42)
	ctx = services.WithDriveID(ctx, "E:")
	ctx = services.WithStage(ctx, "ripping")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.JobIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected job id: %v %v", id, ok)
	}
	if driveID, ok := services.DriveIDFromContext(ctx); !ok || driveID != "E:" {
		t.Fatalf("unexpected drive id: %v %v", driveID, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "ripping" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
}

func TestDriveIDBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithDriveID(ctx, "")
	if _, ok := services.DriveIDFromContext(ctx); ok {
		t.Fatal("expected no drive id value")
	}
}
