package runstore

import (
	"encoding/json"
	"errors"

	"github.com/tsawler/go-zsl/training"
)

// CurrentSchemaVersion is bumped whenever a stored payload changes shape.
const CurrentSchemaVersion = 1

var ErrVersionMismatch = errors.New("record version mismatch")

type versionedRun struct {
	SchemaVersion int       `json:"schema_version"`
	Run           RunRecord `json:"run"`
}

type versionedHistory struct {
	SchemaVersion int                    `json:"schema_version"`
	History       []training.EpochLosses `json:"history"`
}

type versionedDatasetInfo struct {
	SchemaVersion int         `json:"schema_version"`
	Info          DatasetInfo `json:"info"`
}

func encodeRun(run RunRecord) ([]byte, error) {
	return json.Marshal(versionedRun{SchemaVersion: CurrentSchemaVersion, Run: run})
}

func decodeRun(data []byte) (RunRecord, error) {
	var rec versionedRun
	if err := json.Unmarshal(data, &rec); err != nil {
		return RunRecord{}, err
	}
	if rec.SchemaVersion != CurrentSchemaVersion {
		return RunRecord{}, ErrVersionMismatch
	}
	return rec.Run, nil
}

func encodeHistory(history []training.EpochLosses) ([]byte, error) {
	return json.Marshal(versionedHistory{SchemaVersion: CurrentSchemaVersion, History: history})
}

func decodeHistory(data []byte) ([]training.EpochLosses, error) {
	var rec versionedHistory
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	if rec.SchemaVersion != CurrentSchemaVersion {
		return nil, ErrVersionMismatch
	}
	return rec.History, nil
}

func encodeDatasetInfo(info DatasetInfo) ([]byte, error) {
	return json.Marshal(versionedDatasetInfo{SchemaVersion: CurrentSchemaVersion, Info: info})
}

func decodeDatasetInfo(data []byte) (DatasetInfo, error) {
	var rec versionedDatasetInfo
	if err := json.Unmarshal(data, &rec); err != nil {
		return DatasetInfo{}, err
	}
	if rec.SchemaVersion != CurrentSchemaVersion {
		return DatasetInfo{}, ErrVersionMismatch
	}
	return rec.Info, nil
}
