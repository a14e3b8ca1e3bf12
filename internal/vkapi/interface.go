package vkapi

import "context"

// API is the set of VK API methods the collection engine consumes.
type API interface {
	GroupsGetByID(ctx context.Context, identifier string) ([]GroupInfo, error)
	WallGet(ctx context.Context, ownerID int64, count, offset int) (*WallPage, error)
	WallGetComments(ctx context.Context, ownerID, postID int64, count, offset int) (*CommentsPage, error)
}
