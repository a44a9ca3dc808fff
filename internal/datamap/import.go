package datamap

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dbasik/dbasik/internal/model"
)

// Store is the persistence Import needs.
type Store interface {
	GetDatamap(ctx context.Context, id string) (*model.Datamap, error)
	AddDatamapLines(ctx context.Context, datamapID string, lines []model.DatamapLine) error
	ReplaceDatamapLines(ctx context.Context, datamapID string, lines []model.DatamapLine) error
}

// Import validates lines against the datamap they will belong to and writes
// them. With replace the existing lines are discarded; otherwise the new
// lines are appended and must not collide with the existing ones.
func Import(ctx context.Context, s Store, datamapID string, lines []model.DatamapLine, replace bool) (int, error) {
	existing, err := s.GetDatamap(ctx, datamapID)
	if err != nil {
		return 0, eris.Wrapf(err, "datamap: load %s", datamapID)
	}

	merged := model.Datamap{ID: existing.ID, Name: existing.Name}
	if !replace {
		merged.Lines = append(merged.Lines, existing.Lines...)
	}
	merged.Lines = append(merged.Lines, lines...)
	if err := merged.Validate(); err != nil {
		return 0, err
	}

	// Validate normalises cell refs in place, so write the tail of merged.
	added := merged.Lines[len(merged.Lines)-len(lines):]
	for i := range added {
		added[i].DatamapID = datamapID
	}

	if replace {
		err = s.ReplaceDatamapLines(ctx, datamapID, added)
	} else {
		err = s.AddDatamapLines(ctx, datamapID, added)
	}
	if err != nil {
		return 0, eris.Wrap(err, "datamap: write lines")
	}

	zap.L().Info("datamap lines imported",
		zap.String("datamap_id", datamapID),
		zap.String("datamap", existing.Name),
		zap.Int("lines", len(added)),
		zap.Bool("replace", replace),
	)
	return len(added), nil
}
