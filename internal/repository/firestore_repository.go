/*
 *    Copyright 2025 blockarchitech
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"blockarchitech.com/smartlife/internal/models"
	"blockarchitech.com/smartlife/internal/utils"
	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	userCollection       = "users"
	emailCollection      = "user_emails"
	chatCollection       = "chat_messages"
	projectCollection    = "projects"
	todoCollection       = "todos"
	projectMsgCollection = "messages"
	prefsCollection      = "preferences"
	credCollection       = "calendar_credentials"
)

// FirestoreRepository is a Firestore implementation of the Repository.
// To-do items and project chat turns live in subcollections of their project.
type FirestoreRepository struct {
	client        *firestore.Client
	encryptionKey string
	logger        *zap.Logger
}

type emailClaim struct {
	UserID string `firestore:"userID"`
}

// NewFirestoreRepository creates a FirestoreRepository on a client owned by
// the caller.
func NewFirestoreRepository(client *firestore.Client, encryptionKey string, logger *zap.Logger) *FirestoreRepository {
	return &FirestoreRepository{
		client:        client,
		encryptionKey: encryptionKey,
		logger:        logger.Named("firestore_repo"),
	}
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (r *FirestoreRepository) projectRef(projectID string) *firestore.DocumentRef {
	return r.client.Collection(projectCollection).Doc(projectID)
}

func (r *FirestoreRepository) chatRef(userID string) *firestore.CollectionRef {
	return r.client.Collection(userCollection).Doc(userID).Collection(chatCollection)
}

// orDelete is the update value for an optional field.
func orDelete[T any](v *T) any {
	if v == nil {
		return firestore.Delete
	}
	return *v
}

// newestFirst queries the latest turns of a chat subcollection.
func newestFirst(col *firestore.CollectionRef, limit int) firestore.Query {
	q := col.OrderBy("timestamp", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

func (r *FirestoreRepository) CreateUser(ctx context.Context, user *models.User) error {
	u := *user
	u.Email = strings.ToLower(user.Email)
	emailRef := r.client.Collection(emailCollection).Doc(u.Email)
	userRef := r.client.Collection(userCollection).Doc(u.ID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		_, err := tx.Get(emailRef)
		if err == nil {
			return ErrDuplicateEmail
		}
		if !isNotFound(err) {
			return err
		}
		if err := tx.Create(emailRef, emailClaim{UserID: u.ID}); err != nil {
			return err
		}
		return tx.Create(userRef, u)
	})
	if errors.Is(err, ErrDuplicateEmail) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to create user in firestore: %w", err)
	}
	r.logger.Info("Created user in Firestore", zap.String("userID", u.ID))
	return nil
}

func (r *FirestoreRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	doc, err := r.client.Collection(userCollection).Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	var user models.User
	if err := doc.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user data: %w", err)
	}
	return &user, nil
}

func (r *FirestoreRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	doc, err := r.client.Collection(emailCollection).Doc(strings.ToLower(email)).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}
	var claim emailClaim
	if err := doc.DataTo(&claim); err != nil {
		return nil, fmt.Errorf("failed to decode email claim: %w", err)
	}
	return r.GetUserByID(ctx, claim.UserID)
}

func (r *FirestoreRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	_, err := r.client.Collection(userCollection).Doc(userID).Update(ctx, []firestore.Update{
		{Path: "passwordHash", Value: passwordHash},
	})
	if isNotFound(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

func (r *FirestoreRepository) AddChatMessage(ctx context.Context, msg *models.ChatMessage) error {
	if _, err := r.chatRef(msg.UserID).Doc(msg.ID).Set(ctx, msg); err != nil {
		return fmt.Errorf("failed to store chat message: %w", err)
	}
	return nil
}

func (r *FirestoreRepository) ListChatMessages(ctx context.Context, userID string, limit int) ([]models.ChatMessage, error) {
	docs, err := newestFirst(r.chatRef(userID), limit).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	out := make([]models.ChatMessage, 0, len(docs))
	for _, doc := range docs {
		var m models.ChatMessage
		if err := doc.DataTo(&m); err != nil {
			return nil, fmt.Errorf("failed to decode chat message: %w", err)
		}
		out = append(out, m)
	}
	models.SortChatMessages(out)
	return out, nil
}

func (r *FirestoreRepository) CreateProject(ctx context.Context, project *models.Project) error {
	ref := r.projectRef(project.ID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(ref, project); err != nil {
			return err
		}
		for _, t := range project.Todos {
			item := t
			item.ProjectID = project.ID
			if err := tx.Create(ref.Collection(todoCollection).Doc(t.ID), item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	r.logger.Info("Created project in Firestore", zap.String("projectID", project.ID))
	return nil
}

func (r *FirestoreRepository) loadTodos(ctx context.Context, projectID string) ([]models.TodoItem, error) {
	docs, err := r.projectRef(projectID).Collection(todoCollection).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	out := make([]models.TodoItem, 0, len(docs))
	for _, doc := range docs {
		var t models.TodoItem
		if err := doc.DataTo(&t); err != nil {
			return nil, fmt.Errorf("failed to decode todo: %w", err)
		}
		out = append(out, t)
	}
	models.SortTodos(out)
	return out, nil
}

func (r *FirestoreRepository) GetProject(ctx context.Context, userID, projectID string) (*models.Project, error) {
	doc, err := r.projectRef(projectID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	var p models.Project
	if err := doc.DataTo(&p); err != nil {
		return nil, fmt.Errorf("failed to decode project: %w", err)
	}
	if p.UserID != userID {
		return nil, nil
	}
	if p.Todos, err = r.loadTodos(ctx, projectID); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *FirestoreRepository) ListProjects(ctx context.Context, userID string) ([]models.Project, error) {
	docs, err := r.client.Collection(projectCollection).Where("userID", "==", userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	out := make([]models.Project, 0, len(docs))
	for _, doc := range docs {
		var p models.Project
		if err := doc.DataTo(&p); err != nil {
			return nil, fmt.Errorf("failed to decode project: %w", err)
		}
		if p.Todos, err = r.loadTodos(ctx, p.ID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	models.SortProjects(out)
	return out, nil
}

// ownedProject loads a project inside a transaction and checks its owner.
func ownedProject(tx *firestore.Transaction, ref *firestore.DocumentRef, userID string) error {
	doc, err := tx.Get(ref)
	if isNotFound(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	var p models.Project
	if err := doc.DataTo(&p); err != nil {
		return err
	}
	if p.UserID != userID {
		return ErrNotFound
	}
	return nil
}

// updateOwned applies field updates to a project the user owns.
func (r *FirestoreRepository) updateOwned(ctx context.Context, userID, projectID string, updates []firestore.Update) error {
	ref := r.projectRef(projectID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := ownedProject(tx, ref, userID); err != nil {
			return err
		}
		return tx.Update(ref, updates)
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return nil
}

func (r *FirestoreRepository) UpdateProject(ctx context.Context, project *models.Project) error {
	return r.updateOwned(ctx, project.UserID, project.ID, []firestore.Update{
		{Path: "title", Value: project.Title},
		{Path: "description", Value: orDelete(project.Description)},
		{Path: "dueDate", Value: orDelete(project.DueDate)},
		{Path: "category", Value: project.Category},
		{Path: "updatedAt", Value: project.UpdatedAt},
	})
}

func (r *FirestoreRepository) SetProjectPlan(ctx context.Context, userID, projectID string, plan *string, updatedAt time.Time) error {
	return r.updateOwned(ctx, userID, projectID, []firestore.Update{
		{Path: "plan", Value: orDelete(plan)},
		{Path: "updatedAt", Value: updatedAt},
	})
}

func (r *FirestoreRepository) TouchProject(ctx context.Context, userID, projectID string, updatedAt time.Time) error {
	return r.updateOwned(ctx, userID, projectID, []firestore.Update{
		{Path: "updatedAt", Value: updatedAt},
	})
}

func (r *FirestoreRepository) DeleteProject(ctx context.Context, userID, projectID string) error {
	ref := r.projectRef(projectID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return ownedProject(tx, ref, userID)
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}

	bw := r.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for _, sub := range []string{todoCollection, projectMsgCollection} {
		refs, err := ref.Collection(sub).DocumentRefs(ctx).GetAll()
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to list %s: %w", sub, err)
		}
		for _, child := range refs {
			job, err := bw.Delete(child)
			if err != nil {
				bw.End()
				return fmt.Errorf("failed to queue delete: %w", err)
			}
			jobs = append(jobs, job)
		}
	}
	job, err := bw.Delete(ref)
	if err != nil {
		bw.End()
		return fmt.Errorf("failed to queue delete: %w", err)
	}
	jobs = append(jobs, job)
	bw.End()

	for _, j := range jobs {
		if _, err := j.Results(); err != nil && !isNotFound(err) {
			return fmt.Errorf("failed to delete project: %w", err)
		}
	}
	r.logger.Info("Deleted project from Firestore", zap.String("projectID", projectID), zap.Int("documents", len(jobs)))
	return nil
}

func (r *FirestoreRepository) CreateTodos(ctx context.Context, projectID string, todos []models.TodoItem) error {
	ref := r.projectRef(projectID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			if isNotFound(err) {
				return ErrNotFound
			}
			return err
		}
		for _, t := range todos {
			item := t
			item.ProjectID = projectID
			if err := tx.Create(ref.Collection(todoCollection).Doc(t.ID), item); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to create todos: %w", err)
	}
	return nil
}

func (r *FirestoreRepository) GetTodo(ctx context.Context, projectID, todoID string) (*models.TodoItem, error) {
	doc, err := r.projectRef(projectID).Collection(todoCollection).Doc(todoID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get todo: %w", err)
	}
	var t models.TodoItem
	if err := doc.DataTo(&t); err != nil {
		return nil, fmt.Errorf("failed to decode todo: %w", err)
	}
	return &t, nil
}

// updateTodo fails with NotFound when the item does not exist.
func (r *FirestoreRepository) updateTodo(ctx context.Context, projectID, todoID string, updates []firestore.Update) error {
	_, err := r.projectRef(projectID).Collection(todoCollection).Doc(todoID).Update(ctx, updates)
	if isNotFound(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update todo: %w", err)
	}
	return nil
}

func (r *FirestoreRepository) UpdateTodo(ctx context.Context, todo *models.TodoItem) error {
	return r.updateTodo(ctx, todo.ProjectID, todo.ID, []firestore.Update{
		{Path: "text", Value: todo.Text},
		{Path: "completed", Value: todo.Completed},
		{Path: "dueDate", Value: orDelete(todo.DueDate)},
		{Path: "orderIndex", Value: orDelete(todo.OrderIndex)},
	})
}

func (r *FirestoreRepository) SetTodoEventID(ctx context.Context, projectID, todoID, eventID string) error {
	return r.updateTodo(ctx, projectID, todoID, []firestore.Update{
		{Path: "calendarEventID", Value: eventID},
	})
}

func (r *FirestoreRepository) DeleteTodo(ctx context.Context, projectID, todoID string) error {
	_, err := r.projectRef(projectID).Collection(todoCollection).Doc(todoID).Delete(ctx, firestore.Exists)
	if isNotFound(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}
	return nil
}

func (r *FirestoreRepository) AddProjectMessage(ctx context.Context, msg *models.ProjectChatMessage) error {
	_, err := r.projectRef(msg.ProjectID).Collection(projectMsgCollection).Doc(msg.ID).Set(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to store project message: %w", err)
	}
	return nil
}

func (r *FirestoreRepository) ListProjectMessages(ctx context.Context, projectID string, limit int) ([]models.ProjectChatMessage, error) {
	docs, err := newestFirst(r.projectRef(projectID).Collection(projectMsgCollection), limit).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list project messages: %w", err)
	}
	out := make([]models.ProjectChatMessage, 0, len(docs))
	for _, doc := range docs {
		var m models.ProjectChatMessage
		if err := doc.DataTo(&m); err != nil {
			return nil, fmt.Errorf("failed to decode project message: %w", err)
		}
		out = append(out, m)
	}
	models.SortProjectChatMessages(out)
	return out, nil
}

func (r *FirestoreRepository) GetPreferences(ctx context.Context, userID string) (*models.Preferences, error) {
	doc, err := r.client.Collection(prefsCollection).Doc(userID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	var prefs models.Preferences
	if err := doc.DataTo(&prefs); err != nil {
		return nil, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return &prefs, nil
}

func (r *FirestoreRepository) SavePreferences(ctx context.Context, prefs *models.Preferences) error {
	if _, err := r.client.Collection(prefsCollection).Doc(prefs.UserID).Set(ctx, prefs); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	r.logger.Info("Updated user preferences in Firestore", zap.String("userID", prefs.UserID))
	return nil
}

func (r *FirestoreRepository) GetCalendarCredential(ctx context.Context, userID string) (*models.CalendarCredential, error) {
	doc, err := r.client.Collection(credCollection).Doc(userID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get calendar credential: %w", err)
	}
	var cred models.CalendarCredential
	if err := doc.DataTo(&cred); err != nil {
		return nil, fmt.Errorf("failed to decode calendar credential: %w", err)
	}
	if cred.Token, err = utils.DecryptToken(cred.Token, r.encryptionKey); err != nil {
		return nil, fmt.Errorf("failed to decrypt calendar token: %w", err)
	}
	return &cred, nil
}

func (r *FirestoreRepository) SaveCalendarCredential(ctx context.Context, cred *models.CalendarCredential) error {
	stored := *cred
	var err error
	if stored.Token, err = utils.EncryptToken(cred.Token, r.encryptionKey); err != nil {
		return fmt.Errorf("failed to encrypt calendar token: %w", err)
	}
	if _, err := r.client.Collection(credCollection).Doc(cred.UserID).Set(ctx, stored); err != nil {
		return fmt.Errorf("failed to save calendar credential: %w", err)
	}
	return nil
}

func (r *FirestoreRepository) DeleteCalendarCredential(ctx context.Context, userID string) error {
	_, err := r.client.Collection(credCollection).Doc(userID).Delete(ctx)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete calendar credential: %w", err)
	}
	return nil
}

// Close is a no-op; the client belongs to the caller.
func (r *FirestoreRepository) Close() error {
	return nil
}
