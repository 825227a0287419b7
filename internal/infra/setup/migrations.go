package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"chat-room-service/internal/domain"
)

// MigrateDB 处理全部数据库迁移。
// rooms 和 participants 表用自定义 SQL 创建，以便精确控制索引
// ((room_id, user_id) 唯一键是成员状态机的存储前提)；其余表走 AutoMigrate。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	if err := migrateRoomsTable(db); err != nil {
		return fmt.Errorf("failed to migrate rooms table: %w", err)
	}
	if err := migrateParticipantsTable(db); err != nil {
		return fmt.Errorf("failed to migrate participants table: %w", err)
	}

	if err := db.AutoMigrate(&domain.Message{}); err != nil {
		logrus.Errorf("Failed to auto-migrate message table: %v", err)
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}

	logrus.Info("Database migration completed successfully")
	return nil
}

func migrateRoomsTable(db *gorm.DB) error {
	var count int64
	db.Raw("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = 'rooms'").Count(&count)

	if count == 0 {
		sql := `
		CREATE TABLE rooms (
			id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(191) NOT NULL,
			creator_id BIGINT UNSIGNED NOT NULL,
			created_at DATETIME(3),
			active BOOLEAN NOT NULL DEFAULT TRUE,
			max_participants INT NULL,
			updated_at DATETIME(3),
			INDEX idx_creator_id (creator_id),
			INDEX idx_active_created (active, created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_general_ci;
		`
		if err := db.Exec(sql).Error; err != nil {
			logrus.Errorf("Failed to create rooms table: %v", err)
			return fmt.Errorf("failed to create rooms table: %w", err)
		}
		logrus.Info("Rooms table created successfully")
		return nil
	}

	if err := db.AutoMigrate(&domain.Room{}); err != nil {
		return fmt.Errorf("failed to migrate room indexes: %w", err)
	}
	logrus.Info("Rooms table schema checked/updated successfully")
	return nil
}

func migrateParticipantsTable(db *gorm.DB) error {
	var count int64
	db.Raw("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = 'participants'").Count(&count)

	if count == 0 {
		sql := `
		CREATE TABLE participants (
			id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			room_id BIGINT UNSIGNED NOT NULL,
			user_id BIGINT UNSIGNED NOT NULL,
			nickname VARCHAR(191) NOT NULL,
			status VARCHAR(32) NOT NULL,
			joined_at DATETIME(3),
			left_at DATETIME(3) NULL,
			exit_reason VARCHAR(255) NULL,
			kicked_by BIGINT UNSIGNED NULL,
			updated_at DATETIME(3),
			UNIQUE INDEX idx_room_user (room_id, user_id),
			INDEX idx_status (status),
			INDEX idx_left_at (left_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_general_ci;
		`
		if err := db.Exec(sql).Error; err != nil {
			logrus.Errorf("Failed to create participants table: %v", err)
			return fmt.Errorf("failed to create participants table: %w", err)
		}
		logrus.Info("Participants table created successfully")
		return nil
	}

	if err := db.AutoMigrate(&domain.Participant{}); err != nil {
		return fmt.Errorf("failed to migrate participant indexes: %w", err)
	}
	logrus.Info("Participants table schema checked/updated successfully")
	return nil
}
