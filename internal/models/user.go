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

package models

import (
	"time"

	"golang.org/x/oauth2"
)

// Project categories. Each one maps to a time window in Preferences.
const (
	CategoryWorkStudy     = "work_study"
	CategoryGymActivity   = "gym_activity"
	CategoryPersonalGoals = "personal_goals"
)

// ValidCategory reports whether c names a known project category.
func ValidCategory(c string) bool {
	switch c {
	case CategoryWorkStudy, CategoryGymActivity, CategoryPersonalGoals:
		return true
	}
	return false
}

// User is an account holder. Emails are stored lower-cased.
type User struct {
	ID           string    `firestore:"id" json:"id"`
	Email        string    `firestore:"email" json:"email"`
	PasswordHash string    `firestore:"passwordHash" json:"-"`
	Name         *string   `firestore:"name,omitempty" json:"name"`
	CreatedAt    time.Time `firestore:"createdAt" json:"created_at"`
}

// TimeWindow describes when activities of one category may be scheduled.
// Weekdays and Weekends hold ranges such as "09:00-17:00" or the literal "any".
type TimeWindow struct {
	Weekdays *string `firestore:"weekdays,omitempty" json:"weekdays"`
	Weekends *string `firestore:"weekends,omitempty" json:"weekends"`
	AllTime  bool    `firestore:"allTime" json:"all_time"`
}

// Preferences holds user-specific scheduling settings.
type Preferences struct {
	UserID        string     `firestore:"userID" json:"-"`
	WorkStudy     TimeWindow `firestore:"workStudy" json:"work_study"`
	GymActivity   TimeWindow `firestore:"gymActivity" json:"gym_activity"`
	PersonalGoals TimeWindow `firestore:"personalGoals" json:"personal_goals"`
	Timezone      string     `firestore:"timezone,omitempty" json:"timezone,omitempty"`
	UpdatedAt     time.Time  `firestore:"updatedAt" json:"-"`
}

// Window returns the time window configured for a project category.
func (p Preferences) Window(category string) TimeWindow {
	switch category {
	case CategoryGymActivity:
		return p.GymActivity
	case CategoryPersonalGoals:
		return p.PersonalGoals
	default:
		return p.WorkStudy
	}
}

// CalendarCredential is the stored Google Calendar authorization for a user.
type CalendarCredential struct {
	UserID    string        `firestore:"userID" json:"-"`
	Token     *oauth2.Token `firestore:"token" json:"-"`
	Email     string        `firestore:"email,omitempty" json:"email,omitempty"`
	UpdatedAt time.Time     `firestore:"updatedAt" json:"updated_at"`
}
