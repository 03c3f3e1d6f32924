package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"pdfvault/internal/access"
	"pdfvault/internal/db"
	"pdfvault/internal/models"
)

var jwtSecret = os.Getenv("JWT_SECRET")

// SetJWTSecret overrides the signing secret loaded from the environment.
func SetJWTSecret(secret string) { jwtSecret = secret }

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// VerifyPassword compares a plain password with a hashed password
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateJWT generates a token carrying the verified identity pair.
func GenerateJWT(userID, email string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"email":   email,
		"iat":     now.Unix(),
		"exp":     now.Add(4 * time.Hour).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}

// VerifyToken exchanges a bearer token for the verified caller identity and
// the token's issuance time. Invalid or expired tokens fail.
func VerifyToken(tokenString string) (access.Caller, time.Time, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return access.Caller{}, time.Time{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return access.Caller{}, time.Time{}, errors.New("invalid token claims")
	}

	userID, uidOK := claims["user_id"].(string)
	email, emailOK := claims["email"].(string)
	if !uidOK || !emailOK {
		return access.Caller{}, time.Time{}, errors.New("invalid token payload")
	}

	issuedAt := time.Time{}
	if iat, ok := claims["iat"].(float64); ok {
		issuedAt = time.Unix(int64(iat), 0)
	}

	return access.Caller{Authenticated: true, UID: userID, Email: email}, issuedAt, nil
}

// RegisterUser creates an account. Callers must have verified the email
// through the OTP flow before invoking this.
func RegisterUser(ctx context.Context, email, password string) (models.User, error) {
	collection := db.GetCollection("users")

	var existingUser models.User
	err := collection.FindOne(ctx, bson.M{"email": email}).Decode(&existingUser)
	if err == nil {
		return models.User{}, errors.New("email already in use")
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		ID:        primitive.NewObjectID(),
		Email:     email,
		Password:  hashedPassword,
		CreatedAt: time.Now(),
	}
	_, err = collection.InsertOne(ctx, user)
	return user, err
}

// LoginUser authenticates a user and returns a bearer token.
func LoginUser(ctx context.Context, email, password string) (string, error) {
	collection := db.GetCollection("users")

	var user models.User
	err := collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		return "", errors.New("invalid credentials")
	}

	if !VerifyPassword(password, user.Password) {
		return "", errors.New("invalid credentials")
	}

	token, err := GenerateJWT(user.ID.Hex(), user.Email)
	if err != nil {
		return "", err
	}

	return token, nil
}

// UpdatePassword replaces the stored hash after a verified reset.
func UpdatePassword(ctx context.Context, email, newPassword string) error {
	hashedPassword, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	collection := db.GetCollection("users")
	result, err := collection.UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{"$set": bson.M{"password": hashedPassword}},
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if result.MatchedCount == 0 {
		return errors.New("account not found")
	}
	return nil
}

// UserExists reports whether an account is registered for the email.
func UserExists(ctx context.Context, email string) (bool, error) {
	collection := db.GetCollection("users")

	err := collection.FindOne(ctx, bson.M{"email": email}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("account lookup: %w", err)
	}
	return true, nil
}
