package bulkimport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tvms/models"
)

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name    string
		rec     []string
		wantErr bool
	}{
		{"full row", []string{"KA01AB1234", "1", "2", "3", "2026-03-14", "500", "signal jump"}, false},
		{"rfc3339 date", []string{"KA01AB1234", "1", "2", "3", "2026-03-14T09:30:00Z", "500", ""}, false},
		{"no notes column", []string{"KA01AB1234", "1", "2", "3", "2026-03-14", "500"}, false},
		{"too few columns", []string{"KA01AB1234", "1", "2"}, true},
		{"zero type id", []string{"KA01AB1234", "0", "2", "3", "2026-03-14", "500", ""}, true},
		{"bad area id", []string{"KA01AB1234", "1", "x", "3", "2026-03-14", "500", ""}, true},
		{"bad officer id", []string{"KA01AB1234", "1", "2", "-1", "2026-03-14", "500", ""}, true},
		{"bad date", []string{"KA01AB1234", "1", "2", "3", "14/03/2026", "500", ""}, true},
		{"bad fine", []string{"KA01AB1234", "1", "2", "3", "2026-03-14", "five hundred", ""}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseRecord(tt.rec)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "KA01AB1234", v.VehicleNumber)
			assert.Equal(t, uint(1), v.TypeID)
			assert.Equal(t, uint(2), v.AreaID)
			assert.Equal(t, uint(3), v.OfficerID)
			assert.Equal(t, 500.0, v.FineAmount)
			assert.Equal(t, models.StatusUnpaid, v.Status)
		})
	}
}

func TestParseRecordTrimsFields(t *testing.T) {
	v, err := ParseRecord([]string{" KA01AB1234 ", " 1 ", " 2 ", " 3 ", " 2026-03-14 ", " 500 ", "  parked on footpath  "})
	require.NoError(t, err)
	assert.Equal(t, "KA01AB1234", v.VehicleNumber)
	assert.Equal(t, "parked on footpath", v.Notes)
	assert.True(t, v.ViolationDate.Equal(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)))
}
