package scheduling

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const unassignedDentist = "Unassigned"

// FindConflicts reports every pair of active appointments that share a
// dentist and overlap in time. Appointments without a start time never
// conflict. Output is ordered by dentist name, then by the earlier start.
func FindConflicts(appts []*Appointment, dentistName, patientName func(uuid.UUID) string) []ConflictMessage {
	groups := map[string][]*Appointment{}
	for _, a := range appts {
		if IsTerminal(a.Status) || a.StartTime == nil {
			continue
		}
		name := ""
		if a.DentistID != nil && dentistName != nil {
			name = strings.TrimSpace(dentistName(*a.DentistID))
		}
		if name == "" {
			name = unassignedDentist
		}
		groups[name] = append(groups[name], a)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	conflicts := []ConflictMessage{}
	for _, name := range names {
		group := groups[name]
		sort.Slice(group, func(i, j int) bool {
			if !group[i].StartTime.Equal(*group[j].StartTime) {
				return group[i].StartTime.Before(*group[j].StartTime)
			}
			return group[i].ID.String() < group[j].ID.String()
		})

		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if !overlapsInTime(*a.StartTime, *b.StartTime) {
					continue
				}
				pa, pb := resolve(patientName, a.PatientID), resolve(patientName, b.PatientID)
				msg := fmt.Sprintf("%s and %s overlap with %s", pa, pb, name)
				start := *a.StartTime
				// Pairs are keyed and listed in id order.
				if b.ID.String() < a.ID.String() {
					a, b = b, a
					pa, pb = pb, pa
				}
				conflicts = append(conflicts, ConflictMessage{
					ID:             a.ID.String() + ":" + b.ID.String(),
					Dentist:        name,
					AppointmentIDs: [2]uuid.UUID{a.ID, b.ID},
					Patients:       [2]string{pa, pb},
					Start:          start,
					Message:        msg,
				})
			}
		}
	}
	return conflicts
}

// overlapsInTime compares absolute instants so appointments on different
// days never collide.
func overlapsInTime(a, b time.Time) bool {
	a0, b0 := a.Unix()/60, b.Unix()/60
	return Overlaps(int(a0), int(a0)+SlotMinutes, int(b0), int(b0)+SlotMinutes)
}

func resolve(lookup func(uuid.UUID) string, id uuid.UUID) string {
	if lookup != nil {
		if name := strings.TrimSpace(lookup(id)); name != "" {
			return name
		}
	}
	return id.String()
}
