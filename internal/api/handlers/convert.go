package handlers

import (
	"fmt"
	"time"

	"fieldops-routing-service/internal/api/dto"
	"fieldops-routing-service/internal/domain"
)

func parsePriority(s string) (domain.Priority, error) {
	switch s {
	case "", "normal":
		return domain.PriorityNormal, nil
	case "high":
		return domain.PriorityHigh, nil
	case "urgent":
		return domain.PriorityUrgent, nil
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

func jobFromDTO(in dto.JobRequest) (domain.Job, error) {
	if in.ID == "" {
		return domain.Job{}, fmt.Errorf("job id is required")
	}
	prio, err := parsePriority(in.Priority)
	if err != nil {
		return domain.Job{}, fmt.Errorf("job %s: %w", in.ID, err)
	}

	var window *domain.TimeWindow
	if in.WindowStart != nil || in.WindowEnd != nil {
		if in.WindowStart == nil || in.WindowEnd == nil {
			return domain.Job{}, fmt.Errorf("job %s: window needs both start and end", in.ID)
		}
		if !in.WindowEnd.After(*in.WindowStart) {
			return domain.Job{}, fmt.Errorf("job %s: window end must be after start", in.ID)
		}
		window = &domain.TimeWindow{Start: *in.WindowStart, End: *in.WindowEnd}
	}

	return domain.Job{
		ID: in.ID,
		Location: domain.Location{
			Point:           domain.LatLng{Lat: in.Lat, Lon: in.Lon},
			Window:          window,
			ServiceDuration: time.Duration(in.ServiceSeconds) * time.Second,
		},
		Demand:   domain.Demand{WeightKg: in.WeightKg, VolumeM3: in.VolumeM3, Items: in.Items},
		Priority: prio,
		Skill:    in.Skill,
	}, nil
}

func vehicleFromDTO(in dto.VehicleRequest, departAt time.Time) (domain.VehicleConfig, error) {
	if in.ID == "" {
		return domain.VehicleConfig{}, fmt.Errorf("vehicle id is required")
	}

	start := domain.Location{Point: domain.LatLng{Lat: in.StartLat, Lon: in.StartLon}}
	end := start
	if in.EndLat != nil && in.EndLon != nil {
		end = domain.Location{Point: domain.LatLng{Lat: *in.EndLat, Lon: *in.EndLon}}
	}

	shift := domain.TimeWindow{Start: departAt, End: departAt.Add(24 * time.Hour)}
	if in.ShiftStart != nil {
		shift.Start = *in.ShiftStart
	}
	if in.ShiftEnd != nil {
		shift.End = *in.ShiftEnd
	}
	if !shift.End.After(shift.Start) {
		return domain.VehicleConfig{}, fmt.Errorf("vehicle %s: shift end must be after start", in.ID)
	}

	return domain.VehicleConfig{
		ID:        in.ID,
		Capacity:  domain.Demand{WeightKg: in.WeightKg, VolumeM3: in.VolumeM3, Items: in.Items},
		Start:     start,
		End:       end,
		Shift:     shift,
		CostPerKm: in.CostPerKm,
		FixedCost: in.FixedCost,
		Skills:    in.Skills,
	}, nil
}

func solveResponse(result *domain.SolutionResult) dto.SolveResponse {
	res := dto.SolveResponse{
		SolutionID:           result.ID,
		ComputedAt:           result.ComputedAt,
		TotalDistanceMeters:  result.TotalDistanceMeters,
		TotalDurationSeconds: result.TotalDurationSeconds,
		Cost:                 result.Cost,
		Routes:               make([]dto.RouteResponse, 0, len(result.Routes)),
		Unassigned:           make([]dto.UnassignedResponse, 0, len(result.Unassigned)),
	}
	for _, route := range result.Routes {
		rr := dto.RouteResponse{
			VehicleID:       route.VehicleID,
			DistanceMeters:  route.DistanceMeters,
			DurationSeconds: route.DurationSeconds,
			Steps:           make([]dto.StepResponse, 0, len(route.Steps)),
		}
		for _, st := range route.Steps {
			rr.Steps = append(rr.Steps, dto.StepResponse{
				JobID:    st.JobID,
				ArriveAt: st.ArriveAt,
				DepartAt: st.DepartAt,
			})
		}
		res.Routes = append(res.Routes, rr)
	}
	for _, u := range result.Unassigned {
		res.Unassigned = append(res.Unassigned, dto.UnassignedResponse{
			JobID:  u.JobID,
			Reason: string(u.Reason),
		})
	}
	return res
}
