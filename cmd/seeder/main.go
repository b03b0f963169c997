package main

import (
	"fmt"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/yaso2000/dinebuddies-sub000/internal/config"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
	"github.com/yaso2000/dinebuddies-sub000/internal/repository"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const seedUserCount = 10

func main() {
	cfg := config.Load()

	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	log.Println("✅ Connected to Database")

	gofakeit.Seed(42)

	password := "password123"
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("❌ Failed to hash password: %v", err)
	}

	log.Printf("🌱 Seeding %d users...", seedUserCount)
	users := make([]model.User, 0, seedUserCount)
	for i := 1; i <= seedUserCount; i++ {
		email := fmt.Sprintf("user%d@dinebuddies.local", i)

		var existing model.User
		if err := db.Where("email = ?", email).First(&existing).Error; err == nil {
			users = append(users, existing)
			continue
		}

		user := model.User{
			ID:          uuid.New(),
			Name:        gofakeit.Name(),
			Email:       email,
			Password:    string(hashedPassword),
			Avatar:      fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/svg?seed=user%d", i),
			PushEnabled: true,
			IsOnline:    i%3 == 0,
		}

		if err := db.Create(&user).Error; err != nil {
			log.Printf("❌ Failed to create user %s: %v", email, err)
			continue
		}
		users = append(users, user)
		log.Printf("✅ Created user: %s | Email: %s | Pass: %s", user.Name, email, password)
	}

	if len(users) >= 4 {
		seedDirectChat(db, users[0], users[1])
		seedDinnerGroup(db, users[0], users[1:4])
		seedCommunity(db, users)
	}

	log.Println("🎉 Seeding completed!")
}

// seedDirectChat creates a direct conversation with a short exchange
func seedDirectChat(db *gorm.DB, a, b model.User) {
	key := model.DirectKeyFor(a.ID, b.ID)

	var count int64
	db.Model(&model.Conversation{}).Where("direct_key = ?", key).Count(&count)
	if count > 0 {
		return
	}

	now := time.Now()
	conv := model.Conversation{
		ID:        uuid.New(),
		Kind:      model.ConversationKindDirect,
		DirectKey: &key,
		CreatorID: &a.ID,
		Status:    model.ConversationStatusActive,
		Members: []model.ConversationMember{
			{UserID: a.ID, Role: model.MemberRoleMember, JoinedAt: now},
			{UserID: b.ID, Role: model.MemberRoleMember, JoinedAt: now},
		},
	}
	if err := db.Create(&conv).Error; err != nil {
		log.Printf("❌ Failed to create direct chat: %v", err)
		return
	}

	msgRepo := repository.NewMessageRepository(db)
	lines := []struct {
		sender model.User
		text   string
	}{
		{a, "Hey! Still on for Friday?"},
		{b, "Absolutely, already picked out what I'm ordering"},
		{a, gofakeit.HipsterSentence(6)},
	}
	for _, line := range lines {
		msg := &model.Message{
			ConversationID: conv.ID,
			SenderID:       line.sender.ID,
			SenderName:     line.sender.Name,
			SenderAvatar:   line.sender.Avatar,
			Type:           model.MessageTypeText,
			Content:        line.text,
		}
		if err := msgRepo.Create(msg); err != nil {
			log.Printf("❌ Failed to seed message: %v", err)
			return
		}
		db.Model(&model.Conversation{}).Where("id = ?", conv.ID).Updates(map[string]interface{}{
			"last_message_at":        msg.CreatedAt,
			"last_message_summary":   msg.Summary(),
			"last_message_sender_id": msg.SenderID,
		})
	}
	log.Printf("✅ Created direct chat: %s <-> %s", a.Name, b.Name)
}

// seedDinnerGroup creates a group conversation tied to a dining event
// tomorrow evening
func seedDinnerGroup(db *gorm.DB, admin model.User, members []model.User) {
	name := "Friday Tapas Night"

	var count int64
	db.Model(&model.Conversation{}).Where("name = ?", name).Count(&count)
	if count > 0 {
		return
	}

	now := time.Now()
	eventStart := now.Add(24 * time.Hour).Truncate(time.Hour)
	expiresAt := eventStart.Add(model.GroupLifetime)

	group := model.Conversation{
		ID:           uuid.New(),
		Kind:         model.ConversationKindGroup,
		Name:         name,
		Avatar:       "https://api.dicebear.com/7.x/initials/svg?seed=FTN",
		CreatorID:    &admin.ID,
		Status:       model.ConversationStatusActive,
		EventStartAt: &eventStart,
		ExpiresAt:    &expiresAt,
	}

	groupMembers := []model.ConversationMember{
		{UserID: admin.ID, Role: model.MemberRoleAdmin, JoinedAt: now},
	}
	for _, m := range members {
		groupMembers = append(groupMembers, model.ConversationMember{
			UserID: m.ID, Role: model.MemberRoleMember, JoinedAt: now,
		})
	}
	group.Members = groupMembers

	if err := db.Create(&group).Error; err != nil {
		log.Printf("❌ Failed to create group: %v", err)
		return
	}

	msgRepo := repository.NewMessageRepository(db)
	welcome := &model.Message{
		ConversationID: group.ID,
		SenderID:       uuid.Nil,
		SenderName:     "DineBuddies",
		Type:           model.MessageTypeSystem,
		Content:        admin.Name + " created the group",
	}
	if err := msgRepo.Create(welcome); err != nil {
		log.Printf("❌ Failed to seed group message: %v", err)
	}
	log.Printf("✅ Created group: %s (expires %s)", name, expiresAt.Format(time.RFC3339))
}

// seedCommunity creates a community conversation with all seeded users
func seedCommunity(db *gorm.DB, users []model.User) {
	name := "Foodies of Amsterdam"

	var count int64
	db.Model(&model.Conversation{}).Where("name = ?", name).Count(&count)
	if count > 0 {
		return
	}

	now := time.Now()
	community := model.Conversation{
		ID:        uuid.New(),
		Kind:      model.ConversationKindCommunity,
		Name:      name,
		Avatar:    "https://api.dicebear.com/7.x/initials/svg?seed=FA",
		CreatorID: &users[0].ID,
		Status:    model.ConversationStatusActive,
	}

	communityMembers := make([]model.ConversationMember, 0, len(users))
	for i, u := range users {
		role := model.MemberRoleMember
		if i == 0 {
			role = model.MemberRoleAdmin
		}
		communityMembers = append(communityMembers, model.ConversationMember{
			UserID: u.ID, Role: role, JoinedAt: now, LastReadAt: &now,
		})
	}
	community.Members = communityMembers

	if err := db.Create(&community).Error; err != nil {
		log.Printf("❌ Failed to create community: %v", err)
		return
	}

	msgRepo := repository.NewMessageRepository(db)
	for i := 0; i < 5; i++ {
		sender := users[i%len(users)]
		msg := &model.Message{
			ConversationID: community.ID,
			SenderID:       sender.ID,
			SenderName:     sender.Name,
			SenderAvatar:   sender.Avatar,
			Type:           model.MessageTypeText,
			Content:        gofakeit.HipsterSentence(8),
		}
		if err := msgRepo.Create(msg); err != nil {
			log.Printf("❌ Failed to seed community message: %v", err)
			return
		}
	}
	log.Printf("✅ Created community: %s with %d members", name, len(users))
}
