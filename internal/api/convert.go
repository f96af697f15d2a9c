package api

import (
	"fmt"

	"github.com/signalsfoundry/maneuver-lab/core"
	"github.com/signalsfoundry/maneuver-lab/internal/engine"
	"github.com/signalsfoundry/maneuver-lab/model"
	"google.golang.org/protobuf/types/known/structpb"
)

// numberField returns in[key] when it holds a number. Absent and null fields
// report ok=false.
func numberField(in *structpb.Struct, key string) (v float64, ok bool, err error) {
	val, present := in.GetFields()[key]
	if !present || val == nil {
		return 0, false, nil
	}
	switch kind := val.GetKind().(type) {
	case *structpb.Value_NumberValue:
		return kind.NumberValue, true, nil
	case *structpb.Value_NullValue:
		return 0, false, nil
	default:
		return 0, false, fmt.Errorf("%w: %s must be a number", ErrInvalidRequest, key)
	}
}

func stringField(in *structpb.Struct, key string) (string, error) {
	val, present := in.GetFields()[key]
	if !present || val == nil {
		return "", nil
	}
	switch kind := val.GetKind().(type) {
	case *structpb.Value_StringValue:
		return kind.StringValue, nil
	case *structpb.Value_NullValue:
		return "", nil
	default:
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidRequest, key)
	}
}

func boolField(in *structpb.Struct, key string) (bool, error) {
	val, present := in.GetFields()[key]
	if !present || val == nil {
		return false, nil
	}
	switch kind := val.GetKind().(type) {
	case *structpb.Value_BoolValue:
		return kind.BoolValue, nil
	case *structpb.Value_NullValue:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s must be a boolean", ErrInvalidRequest, key)
	}
}

func stateMap(s model.OrbitalState) map[string]interface{} {
	return map[string]interface{}{
		"altitude_km": s.AltitudeKm,
		"delta_v":     s.DeltaV,
		"zoom":        s.Zoom,
	}
}

func bodyMap(b model.CentralBody) map[string]interface{} {
	return map[string]interface{}{
		"name":          b.Name,
		"gm":            b.GM,
		"radius_meters": b.RadiusMeters,
	}
}

func elementsMap(el core.OrbitalElements) map[string]interface{} {
	return map[string]interface{}{
		"r1":                    el.R1,
		"v1":                    el.V1,
		"v2":                    el.V2,
		"semi_major_axis":       el.SemiMajorAxis,
		"eccentricity":          el.Eccentricity,
		"periapsis":             el.Periapsis,
		"apoapsis":              el.Apoapsis,
		"periapsis_altitude_km": el.PeriapsisAltitudeKm(),
		"apoapsis_altitude_km":  el.ApoapsisAltitudeKm(),
		"period_seconds":        el.Period,
		"retrograde":            el.Retrograde,
		"specific_energy":       el.SpecificEnergy(),
	}
}

func summaryMap(s core.Summary) map[string]interface{} {
	return map[string]interface{}{
		"regime":          s.Regime.String(),
		"label":           s.Regime.Label(),
		"bound":           s.Regime.Bound(),
		"path_style":      s.PathStyle.String(),
		"period_valid":    s.PeriodValid,
		"apoapsis_valid":  s.ApoapsisValid,
		"periapsis_valid": s.PeriapsisValid,
	}
}

func positionMap(p core.Position) map[string]interface{} {
	return map[string]interface{}{
		"mean_anomaly":      p.MeanAnomaly,
		"eccentric_anomaly": p.EccentricAnomaly,
		"true_anomaly":      p.TrueAnomaly,
		"radius":            p.Radius,
		"altitude_km":       p.AltitudeKm,
		"display_angle":     p.DisplayAngle,
		"x":                 p.X,
		"y":                 p.Y,
	}
}

func frameMap(f core.Frame) map[string]interface{} {
	return map[string]interface{}{
		"elapsed_seconds":       f.ElapsedSeconds,
		"semi_major_axis":       f.SemiMajorAxis,
		"eccentricity":          f.Eccentricity,
		"periapsis_altitude_km": f.PeriapsisAltitudeKm,
		"apoapsis_altitude_km":  f.ApoapsisAltitudeKm,
		"period_seconds":        f.PeriodSeconds,
		"post_burn_speed":       f.PostBurnSpeed,
		"regime":                f.Regime.String(),
		"summary":               summaryMap(f.Summary),
		"has_position":          f.HasPosition,
		"current_radius":        f.CurrentRadius,
		"true_anomaly":          f.TrueAnomaly,
		"display_angle":         f.DisplayAngle,
		"x":                     f.X,
		"y":                     f.Y,
	}
}

func pathList(points []core.Point) []interface{} {
	out := make([]interface{}, 0, len(points))
	for _, p := range points {
		out = append(out, map[string]interface{}{"x": p.X, "y": p.Y})
	}
	return out
}

// geometryMap carries what a renderer strokes each frame: the burn marker
// always, the ellipse only for bound orbits.
func geometryMap(el core.OrbitalElements) map[string]interface{} {
	marker := core.BurnMarker(el)
	out := map[string]interface{}{
		"burn_marker": map[string]interface{}{"x": marker.X, "y": marker.Y},
	}
	if e, ok := core.EllipseGeometry(el); ok {
		out["ellipse"] = map[string]interface{}{
			"center_x":        e.CenterX,
			"semi_major_axis": e.SemiMajorAxis,
			"semi_minor_axis": e.SemiMinorAxis,
		}
	}
	return out
}

func clockMap(st engine.ClockStatus) map[string]interface{} {
	return map[string]interface{}{
		"elapsed_seconds": st.Elapsed,
		"running":         st.Running,
		"frames":          float64(st.Frames),
	}
}

func assessmentMap(a core.BurnAssessment) map[string]interface{} {
	return map[string]interface{}{
		"delta_v":          a.DeltaV,
		"duration_seconds": a.DurationSeconds,
		"acceleration":     a.Acceleration,
		"g_force":          a.GForce,
		"status":           string(a.Status),
		"reason":           a.Reason,
	}
}

func toStruct(m map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out, nil
}
