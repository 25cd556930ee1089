package datastore

import (
	"time"
)

// CountByStatus returns registry row counts per verification status. All
// three statuses are present in the result even when zero.
func (ds *DataStore) CountByStatus() (map[Status]int64, error) {
	type row struct {
		VerificationStatus Status
		Count              int64
	}
	var rows []row
	err := ds.DB.Model(&Aircraft{}).
		Select("verification_status, COUNT(*) as count").
		Group("verification_status").
		Find(&rows).Error
	if err != nil {
		return nil, dbError(err, "count_by_status", "")
	}

	counts := map[Status]int64{
		StatusUnknown:   0,
		StatusConfirmed: 0,
		StatusNegative:  0,
	}
	for _, r := range rows {
		counts[r.VerificationStatus] = r.Count
	}
	return counts, nil
}

// ChecksSince counts audit entries newer than t, the rolling-window figure
// used for operational visibility.
func (ds *DataStore) ChecksSince(t time.Time) (int64, error) {
	var count int64
	err := ds.DB.Model(&VerificationLog{}).
		Where("checked_at >= ?", t).
		Count(&count).Error
	if err != nil {
		return 0, dbError(err, "checks_since", "")
	}
	return count, nil
}
