/*
Package mongo provides a MongoDB implementation of leave.Store.

DOCUMENTS:
  leave_companies       company + policy + bank holidays
  leave_day_overrides   unique index on (company_id, date)
  leave_employees       profile + embedded ledger document + version
  leave_requests        request lifecycle + allocation snapshot

LEDGER CAS:
  UpdateOne({_id, version: expected}, {$set: ledger, $inc: {version: 1}}).
  MatchedCount == 0 means a missing employee or a lost race.

TRANSACTIONS:
  WithTx runs fn in a session transaction, which needs a replica set (a
  single-node replica set is enough for development).
*/
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/leave"
)

// Collection name constants.
const (
	colCompanies = "leave_companies"
	colOverrides = "leave_day_overrides"
	colEmployees = "leave_employees"
	colRequests  = "leave_requests"
)

var _ leave.Store = (*Store)(nil)

// Store implements leave.Store on one MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri and returns a store on database name.
func Connect(ctx context.Context, uri, name string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("leave/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("leave/mongo: ping: %w", err)
	}
	return New(client, name), nil
}

func New(client *mongo.Client, name string) *Store {
	return &Store{client: client, db: client.Database(name)}
}

// Migrate creates the indexes the store relies on.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colOverrides: {{
			Keys:    bson.D{{Key: "company_id", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		colEmployees: {
			{Keys: bson.D{{Key: "company_id", Value: 1}, {Key: "code_key", Value: 1}}},
			{Keys: bson.D{{Key: "company_id", Value: 1}, {Key: "email_key", Value: 1}}},
		},
		colRequests: {
			{Keys: bson.D{{Key: "employee_id", Value: 1}, {Key: "status", Value: 1}}},
		},
	}
	for col, models := range indexes {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("leave/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.client.Ping(ctx, nil) }

func (s *Store) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }

func (s *Store) col(name string) *mongo.Collection { return s.db.Collection(name) }

// WithTx runs fn inside a session transaction. The ctx handed to fn carries
// the session; every call on tx must use it.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx leave.Store) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("leave/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sctx context.Context) (any, error) {
		return nil, fn(sctx, &txStore{Store: s})
	})
	return err
}

type txStore struct {
	*Store
}

// WithTx inside a transaction joins it.
func (t *txStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx leave.Store) error) error {
	return fn(ctx, t)
}

// ==================== Companies ====================

func (s *Store) GetCompany(ctx context.Context, id string) (leave.Company, error) {
	var m companyModel
	if err := s.col(colCompanies).FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return leave.Company{}, generic.NewNotFound("company", id)
		}
		return leave.Company{}, fmt.Errorf("leave/mongo: get company: %w", err)
	}
	return fromCompanyModel(m)
}

func (s *Store) SaveCompany(ctx context.Context, c leave.Company) error {
	m := toCompanyModel(c)
	_, err := s.col(colCompanies).ReplaceOne(ctx, bson.M{"_id": m.ID}, m, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("leave/mongo: save company: %w", err)
	}
	return nil
}

// ==================== Day overrides ====================

func (s *Store) ListDayOverrides(ctx context.Context, companyID string, p generic.Period) ([]leave.DayOverride, error) {
	filter := bson.M{
		"company_id": companyID,
		"date":       bson.M{"$gte": p.Start.String(), "$lte": p.End.String()},
	}
	cur, err := s.col(colOverrides).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("leave/mongo: list overrides: %w", err)
	}
	var models []overrideModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("leave/mongo: list overrides: %w", err)
	}

	out := make([]leave.DayOverride, 0, len(models))
	for _, m := range models {
		o, err := fromOverrideModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *Store) UpsertDayOverride(ctx context.Context, o leave.DayOverride) error {
	filter := bson.M{"company_id": o.CompanyID, "date": o.Date.String()}
	update := bson.M{
		"$set":         bson.M{"kind": string(o.Kind), "note": o.Note},
		"$setOnInsert": bson.M{"_id": o.ID, "created_at": o.CreatedAt.UTC()},
	}
	_, err := s.col(colOverrides).UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("leave/mongo: upsert override: %w", err)
	}
	return nil
}

func (s *Store) DeleteDayOverride(ctx context.Context, companyID string, date generic.Date) error {
	res, err := s.col(colOverrides).DeleteOne(ctx, bson.M{"company_id": companyID, "date": date.String()})
	if err != nil {
		return fmt.Errorf("leave/mongo: delete override: %w", err)
	}
	if res.DeletedCount == 0 {
		return generic.NewNotFound("day override", companyID+"/"+date.String())
	}
	return nil
}

// ==================== Employees & ledger ====================

func (s *Store) GetEmployee(ctx context.Context, id string) (leave.Employee, error) {
	return s.findOneEmployee(ctx, bson.M{"_id": id}, id)
}

func (s *Store) FindEmployee(ctx context.Context, companyID, ref string) (leave.Employee, error) {
	return s.findOneEmployee(ctx, employeeRefFilter(companyID, ref), ref)
}

func employeeRefFilter(companyID, ref string) bson.M {
	key := strings.ToLower(strings.TrimSpace(ref))
	return bson.M{
		"company_id": companyID,
		"$or": bson.A{
			bson.M{"_id": ref},
			bson.M{"code_key": key},
			bson.M{"email_key": key},
		},
	}
}

func (s *Store) findOneEmployee(ctx context.Context, filter bson.M, ref string) (leave.Employee, error) {
	var m employeeModel
	if err := s.col(colEmployees).FindOne(ctx, filter).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return leave.Employee{}, generic.NewNotFound("employee", ref)
		}
		return leave.Employee{}, fmt.Errorf("leave/mongo: get employee: %w", err)
	}
	return fromEmployeeModel(m)
}

func (s *Store) ListEmployees(ctx context.Context, companyID string) ([]leave.Employee, error) {
	filter := bson.M{}
	if companyID != "" {
		filter["company_id"] = companyID
	}
	cur, err := s.col(colEmployees).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("leave/mongo: list employees: %w", err)
	}
	var models []employeeModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("leave/mongo: list employees: %w", err)
	}

	out := make([]leave.Employee, 0, len(models))
	for _, m := range models {
		e, err := fromEmployeeModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// SaveEmployee upserts profile fields. The ledger and version are only set
// when the document is inserted.
func (s *Store) SaveEmployee(ctx context.Context, e leave.Employee) error {
	m := toEmployeeModel(e)
	update := bson.M{
		"$set": bson.M{
			"company_id":  m.CompanyID,
			"code":        m.Code,
			"code_key":    m.CodeKey,
			"email":       m.Email,
			"email_key":   m.EmailKey,
			"name":        m.Name,
			"approver_id": m.ApproverID,
		},
		"$setOnInsert": bson.M{
			"ledger":     m.Ledger,
			"version":    m.Version,
			"created_at": m.CreatedAt,
		},
	}
	_, err := s.col(colEmployees).UpdateOne(ctx, bson.M{"_id": m.ID}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("leave/mongo: save employee: %w", err)
	}
	return nil
}

func (s *Store) UpdateLedger(ctx context.Context, employeeID string, expectedVersion int64, next leave.EmployeeLedger) error {
	res, err := s.col(colEmployees).UpdateOne(ctx,
		bson.M{"_id": employeeID, "version": expectedVersion},
		bson.M{
			"$set": bson.M{"ledger": toLedgerModel(next)},
			"$inc": bson.M{"version": 1},
		})
	if err != nil {
		return fmt.Errorf("leave/mongo: update ledger: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	n, err := s.col(colEmployees).CountDocuments(ctx, bson.M{"_id": employeeID})
	if err != nil {
		return fmt.Errorf("leave/mongo: update ledger: %w", err)
	}
	if n == 0 {
		return generic.NewNotFound("employee", employeeID)
	}
	return fmt.Errorf("employee %s ledger moved past version %d: %w",
		employeeID, expectedVersion, generic.ErrConcurrentModification)
}

// ==================== Requests ====================

func (s *Store) GetRequest(ctx context.Context, id string) (leave.LeaveRequest, error) {
	var m requestModel
	if err := s.col(colRequests).FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return leave.LeaveRequest{}, generic.NewNotFound("leave request", id)
		}
		return leave.LeaveRequest{}, fmt.Errorf("leave/mongo: get leave request: %w", err)
	}
	return fromRequestModel(m)
}

func (s *Store) CreateRequest(ctx context.Context, r leave.LeaveRequest) error {
	n, err := s.col(colEmployees).CountDocuments(ctx, bson.M{"_id": r.EmployeeID})
	if err != nil {
		return fmt.Errorf("leave/mongo: create leave request: %w", err)
	}
	if n == 0 {
		return generic.NewNotFound("employee", r.EmployeeID)
	}

	if _, err := s.col(colRequests).InsertOne(ctx, toRequestModel(r)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("leave request %s: %w", r.ID, generic.ErrDuplicateKey)
		}
		return fmt.Errorf("leave/mongo: create leave request: %w", err)
	}
	return nil
}

// DecideRequest writes the decision only while the stored document is PENDING.
func (s *Store) DecideRequest(ctx context.Context, r leave.LeaveRequest) error {
	m := toRequestModel(r)
	res, err := s.col(colRequests).UpdateOne(ctx,
		bson.M{"_id": r.ID, "status": string(leave.StatusPending)},
		bson.M{"$set": bson.M{
			"status":           m.Status,
			"allocations":      m.Allocations,
			"chargeable_days":  m.ChargeableDays,
			"decided_by":       m.DecidedBy,
			"decided_at":       m.DecidedAt,
			"rejection_reason": m.RejectionReason,
			"updated_at":       m.UpdatedAt,
		}})
	if err != nil {
		return fmt.Errorf("leave/mongo: decide leave request: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	cur, err := s.GetRequest(ctx, r.ID)
	if err != nil {
		return err
	}
	return &generic.StateConflictError{
		Resource: "leave request",
		ID:       r.ID,
		Current:  string(cur.Status),
		Required: string(leave.StatusPending),
	}
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
