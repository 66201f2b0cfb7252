package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/ironvale-labs/dtcforge/pkg/types"
)

// VehicleStore implements app/store.VehicleStore: canonical (make, model,
// year) rows and their links to DTC master rows (spec §4.10 Phase D).
type VehicleStore struct {
	CommonFields
	linkTable string
}

func NewVehicleStore(provider SqlProviderAchieve) *VehicleStore {
	s := &VehicleStore{linkTable: types.TableVehicleDTCLinks.Name()}
	s.SetProvider(provider)
	s.SetTable(types.TableVehicles)
	return s
}

func (s *VehicleStore) UpsertVehicle(ctx context.Context, v *types.Vehicle) (*types.Vehicle, error) {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}

	query, args, err := sq.Insert(s.GetTable()).
		Columns("id", "make", "model", "year_start", "year_end", "created_at").
		Values(v.ID, v.Make, v.Model, v.YearStart, v.YearEnd, v.CreatedAt).
		Suffix("ON CONFLICT (make, model, year_start, year_end) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}
	if _, err = s.GetMaster(ctx).Exec(query, args...); err != nil {
		return nil, err
	}

	selQuery, selArgs, err := sq.Select("*").From(s.GetTable()).
		Where(sq.Eq{"make": v.Make, "model": v.Model, "year_start": v.YearStart, "year_end": v.YearEnd}).
		ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var found types.Vehicle
	if err = s.GetReplica(ctx).Get(&found, selQuery, selArgs...); err != nil {
		return nil, err
	}
	return &found, nil
}

func (s *VehicleStore) LinkVehicleToDTC(ctx context.Context, link *types.VehicleDTCLink) error {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}

	query, args, err := sq.Insert(s.linkTable).
		Columns("id", "vehicle_id", "dtc_master_id", "engine", "transmission", "created_at").
		Values(link.ID, link.VehicleID, link.DTCMasterID, link.Engine, link.Transmission, link.CreatedAt).
		Suffix("ON CONFLICT (vehicle_id, dtc_master_id) DO NOTHING").
		ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(query, args...)
	return err
}
