package memory

import (
	"sync"
	"time"

	"github.com/resplendentHSHI/AR-Glasses-Tour-Guide/pkg/types"
)

// PhotoRepo keeps the single most-recent photo per user. Store always
// overwrites; entries survive session stop and are never pruned unless
// Remove is called.
type PhotoRepo struct {
	m sync.Map
}

func NewPhotoRepo() *PhotoRepo {
	return &PhotoRepo{}
}

func (r *PhotoRepo) Store(userID string, p types.StoredPhoto) {
	p.UserID = userID
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}
	r.m.Store(userID, p)
}

func (r *PhotoRepo) Get(userID string) (types.StoredPhoto, bool) {
	v, ok := r.m.Load(userID)
	if !ok {
		return types.StoredPhoto{}, false
	}
	return v.(types.StoredPhoto), true
}

func (r *PhotoRepo) Remove(userID string) {
	r.m.Delete(userID)
}
