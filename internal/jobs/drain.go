package jobs

import (
	"context"
	"fmt"
)

// maxPages stops a pager that keeps handing back the same cursor.
const maxPages = 10000

// drain walks a cursor-paginated API from start until fetch returns the zero
// cursor, handing every page to handle. Page-numbered APIs return the next
// page number, or 0 when done.
func drain[C comparable, T any](ctx context.Context, start C, fetch func(ctx context.Context, cursor C) ([]T, C, error), handle func(items []T) error) error {
	var zero C
	cursor := start
	for page := 0; page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		items, next, err := fetch(ctx, cursor)
		if err != nil {
			return err
		}
		if len(items) > 0 {
			if err := handle(items); err != nil {
				return err
			}
		}
		if next == zero || next == cursor {
			return nil
		}
		cursor = next
	}
	return fmt.Errorf("pagination did not finish after %d pages", maxPages)
}
