// Package exercise serves practice content for the typing exercises.
//
// A Cache sits in front of the generators registered in a Registry. Requests
// are keyed by exercise type and batch size, so asking twice for twenty words
// generates them once:
//
//	items, err := c.GetItems(ctx, types.ExerciseWords, 20, false)
//
// Interactive calls (GetItems, RefreshCache, NextItems) return errors so the
// UI can show them. Background preloads log failures and leave the cache
// untouched.
package exercise
