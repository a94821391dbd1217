package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"gradebook/server/internal/auth"
	"gradebook/server/internal/config"
	"gradebook/server/internal/crypto"
	"gradebook/server/internal/model"
	"gradebook/server/internal/operations"
	"gradebook/server/internal/repository"
)

type Server struct {
	cfg   config.Config
	store *repository.Store
	redis *redis.Client
}

func NewServer(cfg config.Config, store *repository.Store, redisClient *redis.Client) *Server {
	return &Server{
		cfg:   cfg,
		store: store,
		redis: redisClient,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/account/signup", s.handleSignup)
	r.Post("/account/login", s.handleLogin)
	r.Post("/account/forgot", s.handleForgotPassword)
	r.Post("/account/reset", s.handleResetPassword)

	r.With(s.authMiddleware).Get("/account", s.handleGetAccount)
	r.With(s.authMiddleware).Get("/account/find", s.handleFindAccount)
	r.With(s.authMiddleware).Get("/account/all", s.handleListAccounts)
	r.With(s.authMiddleware).Post("/account/update", s.handleUpdateProfile)
	r.With(s.authMiddleware).Post("/account/password", s.handleUpdatePassword)
	r.With(s.authMiddleware, s.requireHeadmaster).Post("/account/role", s.handleUpdateRole)

	r.With(s.authMiddleware).Get("/group/all", s.handleListGroups)
	r.With(s.authMiddleware).Get("/group/find", s.handleFindGroup)
	r.With(s.authMiddleware, s.requireHeadmaster).Post("/group/create", s.handleCreateGroup)
	r.With(s.authMiddleware, s.requireHeadmaster).Put("/group/add", s.handleAddStudent)
	r.With(s.authMiddleware, s.requireHeadmaster).Put("/group/remove", s.handleRemoveStudent)

	r.With(s.authMiddleware).Get("/subject/all", s.handleListSubjects)
	r.With(s.authMiddleware, s.requireHeadmaster).Post("/subject/create", s.handleCreateSubject)

	r.With(s.authMiddleware).Get("/lecture/all", s.handleListLectures)
	r.With(s.authMiddleware).Get("/lecture/authorized", s.handleLectureAuthorized)
	r.With(s.authMiddleware, s.requireHeadmaster).Post("/lecture/connect", s.handleConnectLecture)

	r.With(s.authMiddleware).Get("/grades/all", s.handleGetGrades)
	r.With(s.authMiddleware, s.requireProfessorOrHeadmaster).Post("/grades/update", s.handleUpdateGrades)

	return r
}

// Auth

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func (s *Server) requireHeadmaster(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil || claims.Role != string(model.RoleHeadmaster) {
			writeError(w, http.StatusForbidden, "headmaster_only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireProfessorOrHeadmaster(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil || (claims.Role != string(model.RoleProfessor) && claims.Role != string(model.RoleHeadmaster)) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Accounts

type signupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID     string `json:"id"`
	Role   string `json:"role"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Gender string `json:"gender"`
	Avatar string `json:"avatar"`
}

type authResponse struct {
	userResponse
	AccessToken string `json:"accessToken"`
}

func mapUser(user model.User) userResponse {
	return userResponse{
		ID:     user.ID,
		Role:   string(user.Role),
		Email:  user.Email,
		Name:   user.Profile.Name,
		Gender: user.Profile.Gender,
		Avatar: user.Avatar(60),
	}
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if len(strings.TrimSpace(req.Name)) < 4 {
		writeError(w, http.StatusUnprocessableEntity, "invalid_name")
		return
	}
	if !validEmail(req.Email) {
		writeError(w, http.StatusUnprocessableEntity, "invalid_email")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusUnprocessableEntity, "password_too_short")
		return
	}
	if req.Password != req.ConfirmPassword {
		writeError(w, http.StatusUnprocessableEntity, "password_mismatch")
		return
	}

	role := model.RoleUnknown
	if s.cfg.HeadmasterEmailPrefix != "" && strings.HasPrefix(req.Email, s.cfg.HeadmasterEmailPrefix) {
		role = model.RoleHeadmaster
	}
	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	user, err := s.store.CreateUser(r.Context(), model.User{
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		Profile:      model.Profile{Name: strings.TrimSpace(req.Name)},
	})
	if err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			writeError(w, http.StatusConflict, "email_in_use")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	token, err := s.issueToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{userResponse: mapUser(user), AccessToken: token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "missing_credentials")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "bad_credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if err := crypto.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "bad_credentials")
		return
	}

	token, err := s.issueToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{userResponse: mapUser(user), AccessToken: token})
}

func (s *Server) issueToken(user model.User) (string, error) {
	return auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		UserID: user.ID,
		Role:   string(user.Role),
	})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, mapUser(user))
}

func (s *Server) handleFindAccount(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("id")
	if userID == "" {
		writeError(w, http.StatusUnprocessableEntity, "missing_user_id")
		return
	}
	user, err := s.store.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, mapUser(user))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	roleFilter := ""
	if raw := r.URL.Query().Get("role"); raw != "" {
		role, err := model.ParseRole(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_role")
			return
		}
		roleFilter = string(role)
	}
	users, err := s.store.ListUsers(r.Context(), roleFilter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]userResponse, 0, len(users))
	for _, user := range users {
		resp = append(resp, mapUser(user))
	}
	writeJSON(w, http.StatusOK, resp)
}

type updateProfileRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Gender   string `json:"gender"`
	Location string `json:"location"`
	Website  string `json:"website"`
	Picture  string `json:"picture"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if !validEmail(req.Email) {
		writeError(w, http.StatusUnprocessableEntity, "invalid_email")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	profile := model.Profile{
		Name:       req.Name,
		Gender:     req.Gender,
		Location:   req.Location,
		Website:    req.Website,
		PictureURL: req.Picture,
	}
	if err := s.store.UpdateUserProfile(r.Context(), user.ID, profile); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	user.Profile = profile
	writeJSON(w, http.StatusOK, mapUser(user))
}

type updateRoleRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (s *Server) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if !validEmail(req.Email) {
		writeError(w, http.StatusUnprocessableEntity, "invalid_email")
		return
	}
	role, err := model.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if err := s.store.UpdateUserRole(r.Context(), user.ID, role); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Success"})
}

type updatePasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req updatePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusUnprocessableEntity, "password_too_short")
		return
	}
	if req.Password != req.ConfirmPassword {
		writeError(w, http.StatusUnprocessableEntity, "password_mismatch")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if err := s.store.UpdateUserPassword(r.Context(), claims.UserID, hash); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Success"})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// handleForgotPassword issues a reset token. Mail delivery is a deployment
// concern; the token is returned to the caller, which is where a mailer
// would plug in.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if !validEmail(req.Email) {
		writeError(w, http.StatusUnprocessableEntity, "invalid_email")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	token, err := crypto.NewResetToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	expiry := time.Now().UTC().Add(s.cfg.ResetTokenTTL)
	if err := s.store.SetPasswordReset(r.Context(), user.ID, crypto.HashToken(token), expiry); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"resetToken": token})
}

type resetPasswordRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusUnprocessableEntity, "missing_token")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusUnprocessableEntity, "password_too_short")
		return
	}
	if req.Password != req.ConfirmPassword {
		writeError(w, http.StatusUnprocessableEntity, "password_mismatch")
		return
	}

	user, err := s.store.GetUserByResetToken(r.Context(), crypto.HashToken(req.Token), time.Now().UTC())
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "invalid_or_expired_token")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if err := s.store.UpdateUserPassword(r.Context(), user.ID, hash); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Success"})
}

// Groups

type createGroupRequest struct {
	Name   string `json:"name"`
	Year   int    `json:"year"`
	Mentor string `json:"mentor"`
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if _, err := operations.CreateGroup(r.Context(), s.store, req.Name, req.Year, req.Mentor); err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Success"})
}

type groupResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Year   int    `json:"year"`
	Mentor string `json:"mentor"`
}

func (s *Server) handleFindGroup(w http.ResponseWriter, r *http.Request) {
	group, err := operations.FindGroup(r.Context(), s.store, r.URL.Query().Get("id"))
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groupResponse{
		ID:     group.ID,
		Name:   group.Name,
		Year:   group.Year,
		Mentor: group.MentorID,
	})
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	views, err := operations.ListGroupViews(r.Context(), s.store)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

type membershipRequest struct {
	GroupID   string `json:"groupId"`
	StudentID string `json:"studentId"`
}

func (s *Server) handleAddStudent(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := operations.AddStudent(r.Context(), s.store, req.GroupID, req.StudentID); err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Success"})
}

func (s *Server) handleRemoveStudent(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := operations.RemoveStudent(r.Context(), s.store, req.GroupID, req.StudentID); err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Success"})
}

// Subjects

type createSubjectRequest struct {
	Name string `json:"name"`
	Year int    `json:"year"`
}

func (s *Server) handleCreateSubject(w http.ResponseWriter, r *http.Request) {
	var req createSubjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if len(strings.TrimSpace(req.Name)) < 6 {
		writeError(w, http.StatusBadRequest, "name_too_short")
		return
	}
	if !operations.ValidYear(req.Year) {
		writeError(w, http.StatusBadRequest, "invalid_year")
		return
	}

	subject, err := s.store.CreateSubject(r.Context(), model.Subject{
		Name: strings.TrimSpace(req.Name),
		Year: req.Year,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	s.invalidateSubjectCache(r.Context(), subject.Year)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Success"})
}

func (s *Server) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	sel := operations.SubjectSelector{
		GroupID:   r.URL.Query().Get("groupId"),
		StudentID: r.URL.Query().Get("studentId"),
	}
	if raw := r.URL.Query().Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_year")
			return
		}
		sel.Year = year
	}

	subjects, err := s.listSubjectsCached(r.Context(), sel)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subjects)
}

// listSubjectsCached resolves the selector's year first so group and student
// selectors share the per-year cache entries. Without redis it falls through
// to the store on every call.
func (s *Server) listSubjectsCached(ctx context.Context, sel operations.SubjectSelector) ([]model.Subject, error) {
	year, err := operations.ResolveYear(ctx, s.store, sel)
	if err != nil {
		return nil, err
	}
	if s.redis == nil {
		return operations.ListSubjects(ctx, s.store, operations.SubjectSelector{Year: year})
	}

	key := subjectCacheKey(year)
	if data, err := s.redis.Get(ctx, key).Result(); err == nil {
		var subjects []model.Subject
		if json.Unmarshal([]byte(data), &subjects) == nil {
			return subjects, nil
		}
	}
	subjects, err := operations.ListSubjects(ctx, s.store, operations.SubjectSelector{Year: year})
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(subjects); err == nil {
		_ = s.redis.Set(ctx, key, data, s.cfg.SubjectCacheTTL).Err()
	}
	return subjects, nil
}

func (s *Server) invalidateSubjectCache(ctx context.Context, year int) {
	if s.redis == nil {
		return
	}
	_ = s.redis.Del(ctx, subjectCacheKey(0), subjectCacheKey(year)).Err()
}

func subjectCacheKey(year int) string {
	return fmt.Sprintf("subjects:%d", year)
}

// Lectures

type connectLectureRequest struct {
	GroupID     string `json:"groupId"`
	SubjectID   string `json:"subjectId"`
	ProfessorID string `json:"professorId"`
}

func (s *Server) handleConnectLecture(w http.ResponseWriter, r *http.Request) {
	var req connectLectureRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := operations.AssignLecture(r.Context(), s.store, req.GroupID, req.SubjectID, req.ProfessorID); err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Success"})
}

func (s *Server) handleListLectures(w http.ResponseWriter, r *http.Request) {
	lectures, err := operations.ListLectures(r.Context(), s.store,
		r.URL.Query().Get("professorId"), r.URL.Query().Get("groupId"))
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lectures)
}

func (s *Server) handleLectureAuthorized(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	professorID := r.URL.Query().Get("professorId")
	if professorID == "" {
		professorID = claims.UserID
	}
	authorized, err := operations.IsProfessorAuthorized(r.Context(), s.store,
		r.URL.Query().Get("studentId"), r.URL.Query().Get("subjectId"), professorID)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"authorized": authorized})
}

// Grades

func (s *Server) handleGetGrades(w http.ResponseWriter, r *http.Request) {
	record, err := operations.GetGrades(r.Context(), s.store, r.URL.Query().Get("studentId"))
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type updateGradesRequest struct {
	StudentID string             `json:"studentId"`
	Grades    []model.GradeEntry `json:"grades"`
	Absences  []json.RawMessage  `json:"absences"`
}

func (s *Server) handleUpdateGrades(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req updateGradesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.StudentID == "" {
		writeError(w, http.StatusUnprocessableEntity, "missing_student_id")
		return
	}

	// Professors may only submit grades for students in a group they teach;
	// headmasters are unrestricted. Identity comes from the verified token,
	// never from the request body.
	if claims.Role == string(model.RoleProfessor) {
		allowed, err := operations.CanSubmitGrades(r.Context(), s.store, req.StudentID, claims.UserID)
		if err != nil {
			writeOperationError(w, err)
			return
		}
		if !allowed {
			writeError(w, http.StatusForbidden, "not_lecture_professor")
			return
		}
	}

	if err := operations.UpdateGrades(r.Context(), s.store, req.StudentID, req.Grades, req.Absences); err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Success"})
}

// Helpers

func writeOperationError(w http.ResponseWriter, err error) {
	code := operations.CodeOf(err)
	if code == "" {
		code = "server_error"
	}
	writeError(w, statusForCode(code), code)
}

func statusForCode(code string) int {
	if strings.HasPrefix(code, "missing_") {
		return http.StatusUnprocessableEntity
	}
	switch code {
	case "invalid_year", "name_too_short":
		return http.StatusBadRequest
	case "group_not_found", "user_not_found", "student_without_group":
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	_, err := mail.ParseAddress(email)
	return err == nil
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
