package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/usermanagement/account-api/internal/core/domain"
	"github.com/usermanagement/account-api/internal/core/ports"
)

const (
	usersCollection = "users"
	rolesCollection = "roles"
)

// CredentialStore implements ports.CredentialStore on MongoDB. Role
// memberships are embedded in the user document as normalized role names.
type CredentialStore struct {
	client       *mongo.Client
	users        *mongo.Collection
	roles        *mongo.Collection
	transactions bool

	inUnit bool
	undo   *undoLog // set when a unit runs without server transactions
}

// NewCredentialStore returns a store on db. With transactions disabled, units
// of work are made atomic by compensating deletes instead of server-side
// transactions, which standalone servers do not support.
func NewCredentialStore(db *mongo.Database, transactions bool) *CredentialStore {
	return &CredentialStore{
		client:       db.Client(),
		users:        db.Collection(usersCollection),
		roles:        db.Collection(rolesCollection),
		transactions: transactions,
	}
}

type mongoUser struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty"`
	Username           string             `bson:"username"`
	NormalizedUsername string             `bson:"normalized_username"`
	Email              string             `bson:"email,omitempty"`
	NormalizedEmail    string             `bson:"normalized_email,omitempty"`
	FullName           string             `bson:"full_name"`
	PasswordHash       string             `bson:"password_hash"`
	Roles              []string           `bson:"roles"`
	CreatedAt          int64              `bson:"created_at"`
}

type mongoRole struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Name           string             `bson:"name"`
	NormalizedName string             `bson:"normalized_name"`
	CreatedAt      int64              `bson:"created_at"`
}

func (r *CredentialStore) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	doc := mongoUser{
		Username:           user.Username,
		NormalizedUsername: domain.Normalize(user.Username),
		Email:              user.Email,
		NormalizedEmail:    domain.Normalize(user.Email),
		FullName:           user.FullName,
		PasswordHash:       user.PasswordHash,
		Roles:              []string{},
		CreatedAt:          user.CreatedAt.Unix(),
	}

	res, err := r.users.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, _ := res.InsertedID.(primitive.ObjectID)
	doc.ID = id
	r.onUndo(func(ctx context.Context) error {
		_, err := r.users.DeleteOne(ctx, bson.M{"_id": id})
		return err
	})
	return doc.toDomain(), nil
}

func (r *CredentialStore) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findUser(ctx, bson.M{"normalized_username": domain.Normalize(username)})
}

func (r *CredentialStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	key := domain.Normalize(email)
	if key == "" {
		return nil, domain.ErrUserNotFound
	}
	return r.findUser(ctx, bson.M{"normalized_email": key})
}

func (r *CredentialStore) findUser(ctx context.Context, filter bson.M) (*domain.User, error) {
	var mu mongoUser
	if err := r.users.FindOne(ctx, filter).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return mu.toDomain(), nil
}

func (r *CredentialStore) FindRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	var mr mongoRole
	if err := r.roles.FindOne(ctx, bson.M{"normalized_name": domain.Normalize(name)}).Decode(&mr); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRoleNotFound
		}
		return nil, fmt.Errorf("find role: %w", err)
	}
	return mr.toDomain(), nil
}

// CreateRole upserts on the normalized name so a lost race reports
// domain.ErrRoleExists without aborting an open transaction.
func (r *CredentialStore) CreateRole(ctx context.Context, role *domain.Role) (*domain.Role, error) {
	key := domain.Normalize(role.Name)
	doc := bson.M{
		"name":            role.Name,
		"normalized_name": key,
		"created_at":      role.CreatedAt.Unix(),
	}

	res, err := r.roles.UpdateOne(ctx,
		bson.M{"normalized_name": key},
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrRoleExists
		}
		return nil, fmt.Errorf("insert role: %w", err)
	}
	if res.UpsertedCount == 0 {
		return nil, domain.ErrRoleExists
	}

	id, _ := res.UpsertedID.(primitive.ObjectID)
	r.onUndo(func(ctx context.Context) error {
		_, err := r.roles.DeleteOne(ctx, bson.M{"_id": id})
		return err
	})

	return &domain.Role{
		ID:             id.Hex(),
		Name:           role.Name,
		NormalizedName: key,
		CreatedAt:      role.CreatedAt,
	}, nil
}

func (r *CredentialStore) AddToRole(ctx context.Context, userID, roleName string) error {
	role, err := r.FindRoleByName(ctx, roleName)
	if err != nil {
		return err
	}

	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return domain.ErrUserNotFound
	}

	res, err := r.users.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$addToSet": bson.M{"roles": role.NormalizedName}},
	)
	if err != nil {
		return fmt.Errorf("add user role: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	if res.ModifiedCount > 0 {
		r.onUndo(func(ctx context.Context) error {
			_, err := r.users.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$pull": bson.M{"roles": role.NormalizedName}})
			return err
		})
	}
	return nil
}

func (r *CredentialStore) RolesOf(ctx context.Context, userID string) ([]string, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	var mu mongoUser
	opts := options.FindOne().SetProjection(bson.M{"roles": 1})
	if err := r.users.FindOne(ctx, bson.M{"_id": oid}, opts).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user roles: %w", err)
	}
	if len(mu.Roles) == 0 {
		return []string{}, nil
	}

	cur, err := r.roles.Find(ctx, bson.M{"normalized_name": bson.M{"$in": mu.Roles}})
	if err != nil {
		return nil, fmt.Errorf("find roles: %w", err)
	}
	var docs []mongoRole
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}

	names := make([]string, 0, len(docs))
	for _, d := range docs {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return names, nil
}

// Atomic runs fn in a server transaction, or with compensation when
// transactions are disabled. The driver's automatic commit retry is not used.
func (r *CredentialStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx ports.CredentialStore) error) error {
	if r.inUnit {
		return fn(ctx, r)
	}

	unit := *r
	unit.inUnit = true

	if !r.transactions {
		unit.undo = &undoLog{}
		if err := fn(ctx, &unit); err != nil {
			if uerr := unit.undo.run(context.WithoutCancel(ctx)); uerr != nil {
				return errors.Join(err, fmt.Errorf("compensate: %w", uerr))
			}
			return err
		}
		return nil
	}

	sess, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	if err := sess.StartTransaction(); err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}

	sc := mongo.NewSessionContext(ctx, sess)
	if err := fn(sc, &unit); err != nil {
		_ = sess.AbortTransaction(context.WithoutCancel(ctx))
		return err
	}
	if err := sess.CommitTransaction(sc); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *CredentialStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

// EnsureIndexes creates the unique indexes lookups and uniqueness rely on.
func (r *CredentialStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "normalized_username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "normalized_email", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"normalized_email": bson.M{"$exists": true}}),
		},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}

	_, err = r.roles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "normalized_name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create role indexes: %w", err)
	}
	return nil
}

func (r *CredentialStore) onUndo(step func(ctx context.Context) error) {
	if r.undo != nil {
		r.undo.push(step)
	}
}

func (mu mongoUser) toDomain() *domain.User {
	return &domain.User{
		ID:                 mu.ID.Hex(),
		Username:           mu.Username,
		NormalizedUsername: mu.NormalizedUsername,
		Email:              mu.Email,
		NormalizedEmail:    mu.NormalizedEmail,
		FullName:           mu.FullName,
		PasswordHash:       mu.PasswordHash,
		CreatedAt:          unixToTime(mu.CreatedAt),
	}
}

func (mr mongoRole) toDomain() *domain.Role {
	return &domain.Role{
		ID:             mr.ID.Hex(),
		Name:           mr.Name,
		NormalizedName: mr.NormalizedName,
		CreatedAt:      unixToTime(mr.CreatedAt),
	}
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
