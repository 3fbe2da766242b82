package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"dilemma/internal/model"
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeRunSummary(s model.RunSummary) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeRunSummary(data []byte) (model.RunSummary, error) {
	var summary model.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return model.RunSummary{}, err
	}
	if err := checkVersion(summary.VersionedRecord); err != nil {
		return model.RunSummary{}, err
	}
	return summary, nil
}

func EncodeTournament(r model.TournamentRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeTournament(data []byte) (model.TournamentRecord, error) {
	var record model.TournamentRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.TournamentRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.TournamentRecord{}, err
	}
	for i, match := range record.Matches {
		if err := checkVersion(match.VersionedRecord); err != nil {
			return model.TournamentRecord{}, fmt.Errorf("match %d: %w", i, err)
		}
	}
	return record, nil
}

func EncodeTrajectory(r model.TrajectoryRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeTrajectory(data []byte) (model.TrajectoryRecord, error) {
	var record model.TrajectoryRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.TrajectoryRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.TrajectoryRecord{}, err
	}
	return record, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != model.CurrentSchemaVersion || v.CodecVersion != model.CurrentCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, v.SchemaVersion, v.CodecVersion)
	}
	return nil
}
