package entity

// Listing is a product advertised on the marketplace. Products are owned by
// another service; the chat only reads them.
type Listing struct {
	ID       string   `json:"id" firestore:"id" bson:"_id"`
	Title    string   `json:"title" firestore:"title" bson:"title"`
	Images   []string `json:"images,omitempty" firestore:"images,omitempty" bson:"images,omitempty"`
	Price    float64  `json:"price" firestore:"price" bson:"price"`
	Status   string   `json:"status" firestore:"status" bson:"status"`
	SellerID string   `json:"seller_id" firestore:"sellerId" bson:"seller_id"`
}

func (l *Listing) MainImage() string {
	if len(l.Images) == 0 {
		return ""
	}
	return l.Images[0]
}

func (l *Listing) Snapshot() *ItemSnapshot {
	return &ItemSnapshot{
		ID:    l.ID,
		Title: l.Title,
		Image: l.MainImage(),
		Price: l.Price,
	}
}
