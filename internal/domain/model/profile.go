// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// Profile bounds.
const (
	MinAge = 10
	MaxAge = 120
)

// ProfileInput carries raw profile values before validation.
// Nil pointers mark optional values that were absent in the source.
type ProfileInput struct {
	UserID           string
	Gender           string
	Age              int
	Country          string
	SubscriptionType string
	ListeningTime    *float64
	SongsPerDay      *int
	SkipRate         *float64
	AdsPerWeek       *int
	DeviceType       string
	OfflineListening *bool
}

// CustomerProfile is a validated client profile. The zero value is not valid;
// build it with NewCustomerProfile. Fields are read through accessors so a
// profile cannot change after construction.
type CustomerProfile struct {
	userID           string
	gender           string
	age              int
	country          string
	subscriptionType string
	listeningTime    *float64
	songsPerDay      *int
	skipRate         *float64
	adsPerWeek       *int
	deviceType       string
	offlineListening *bool
}

// NewCustomerProfile validates in and returns an immutable profile.
// Country is upper-cased.
func NewCustomerProfile(in ProfileInput) (CustomerProfile, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return CustomerProfile{}, fmt.Errorf("%w: user_id is required", ErrInvalidProfile)
	}
	if strings.TrimSpace(in.Gender) == "" {
		return CustomerProfile{}, fmt.Errorf("%w: gender is required", ErrInvalidProfile)
	}
	if in.Age < MinAge || in.Age > MaxAge {
		return CustomerProfile{}, fmt.Errorf("%w: age %d outside %d-%d", ErrInvalidProfile, in.Age, MinAge, MaxAge)
	}
	if in.SkipRate != nil && (*in.SkipRate < 0 || *in.SkipRate > 1) {
		return CustomerProfile{}, fmt.Errorf("%w: skip_rate %g outside 0.0-1.0", ErrInvalidProfile, *in.SkipRate)
	}

	return CustomerProfile{
		userID:           in.UserID,
		gender:           in.Gender,
		age:              in.Age,
		country:          strings.ToUpper(in.Country),
		subscriptionType: in.SubscriptionType,
		listeningTime:    copyPtr(in.ListeningTime),
		songsPerDay:      copyPtr(in.SongsPerDay),
		skipRate:         copyPtr(in.SkipRate),
		adsPerWeek:       copyPtr(in.AdsPerWeek),
		deviceType:       in.DeviceType,
		offlineListening: copyPtr(in.OfflineListening),
	}, nil
}

func (p CustomerProfile) UserID() string           { return p.userID }
func (p CustomerProfile) Gender() string           { return p.gender }
func (p CustomerProfile) Age() int                 { return p.age }
func (p CustomerProfile) Country() string          { return p.country }
func (p CustomerProfile) SubscriptionType() string { return p.subscriptionType }
func (p CustomerProfile) DeviceType() string       { return p.deviceType }

// ListeningTime returns minutes listened and whether the value was present.
func (p CustomerProfile) ListeningTime() (float64, bool) { return deref(p.listeningTime) }

// SongsPerDay returns songs played per day and whether the value was present.
func (p CustomerProfile) SongsPerDay() (int, bool) { return deref(p.songsPerDay) }

// SkipRate returns the skip ratio and whether the value was present.
func (p CustomerProfile) SkipRate() (float64, bool) { return deref(p.skipRate) }

// AdsPerWeek returns ads heard per week and whether the value was present.
func (p CustomerProfile) AdsPerWeek() (int, bool) { return deref(p.adsPerWeek) }

// OfflineListening reports the offline flag and whether the value was present.
func (p CustomerProfile) OfflineListening() (bool, bool) { return deref(p.offlineListening) }

// IsFree reports whether the subscription is the free tier (case-insensitive).
func (p CustomerProfile) IsFree() bool {
	return strings.EqualFold(p.subscriptionType, "Free")
}

// Input returns a copy of the values the profile was built from.
func (p CustomerProfile) Input() ProfileInput {
	return ProfileInput{
		UserID:           p.userID,
		Gender:           p.gender,
		Age:              p.age,
		Country:          p.country,
		SubscriptionType: p.subscriptionType,
		ListeningTime:    copyPtr(p.listeningTime),
		SongsPerDay:      copyPtr(p.songsPerDay),
		SkipRate:         copyPtr(p.skipRate),
		AdsPerWeek:       copyPtr(p.adsPerWeek),
		DeviceType:       p.deviceType,
		OfflineListening: copyPtr(p.offlineListening),
	}
}

// Ptr returns a pointer to v. Handy for building ProfileInput literals.
func Ptr[T any](v T) *T { return &v }

func copyPtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func deref[T any](v *T) (T, bool) {
	if v == nil {
		var zero T
		return zero, false
	}
	return *v, true
}
