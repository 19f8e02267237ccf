package database

// Order queries
const (
	InsertOrderSQL = `
		INSERT INTO orders (id, customer_id, order_type, table_number, total_amount, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	InsertOrderItemSQL = `
		INSERT INTO order_items (id, order_id, menu_item_id, item_name, quantity, unit_price, subtotal, special_instructions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	InsertPaymentSQL = `
		INSERT INTO payments (id, order_id, amount, payment_method, payment_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	InsertOrderStatusLogSQL = `
		INSERT INTO order_status_log (order_id, prev_status, status, changed_by, notes)
		VALUES ($1, $2, $3, $4, $5)`

	LockOrderStatusSQL = `
		SELECT status FROM orders WHERE id = $1 FOR UPDATE`

	UpdateOrderStatusSQL = `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, customer_id, order_type, table_number, total_amount, notes, status, created_at, updated_at`

	GetOrderByIDSQL = `
		SELECT id, customer_id, order_type, table_number, total_amount, notes, status, created_at, updated_at
		FROM orders WHERE id = $1`

	ListOrdersByCustomerSQL = `
		SELECT id, customer_id, order_type, table_number, total_amount, notes, status, created_at, updated_at
		FROM orders WHERE customer_id = $1
		ORDER BY created_at DESC`

	ListOrdersByStatusSQL = `
		SELECT id, customer_id, order_type, table_number, total_amount, notes, status, created_at, updated_at
		FROM orders WHERE status = ANY($1::text[])
		ORDER BY created_at DESC`

	ListAllOrdersSQL = `
		SELECT id, customer_id, order_type, table_number, total_amount, notes, status, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC`

	ListOrderItemsSQL = `
		SELECT id, order_id, menu_item_id, item_name, quantity, unit_price, subtotal, special_instructions
		FROM order_items WHERE order_id = ANY($1::uuid[])
		ORDER BY item_name ASC, id ASC`

	GetPaymentByOrderSQL = `
		SELECT id, order_id, amount, payment_method, payment_status, created_at
		FROM payments WHERE order_id = $1`

	GetOrderStatusHistorySQL = `
		SELECT status, prev_status, changed_by, changed_at, notes
		FROM order_status_log
		WHERE order_id = $1
		ORDER BY changed_at ASC, id ASC`

	CountOrdersByStatusSQL = `
		SELECT status, COUNT(*)
		FROM orders
		WHERE status = ANY($1::text[])
		GROUP BY status`
)

// Menu queries
const (
	ListCategoriesSQL = `
		SELECT id, name, description, created_at
		FROM menu_categories
		ORDER BY name ASC`

	GetCategorySQL = `
		SELECT id, name, description, created_at
		FROM menu_categories WHERE id = $1`

	InsertCategorySQL = `
		INSERT INTO menu_categories (id, name, description)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	UpdateCategorySQL = `
		UPDATE menu_categories SET name = $1, description = $2
		WHERE id = $3
		RETURNING created_at`

	DeleteCategorySQL = `
		DELETE FROM menu_categories WHERE id = $1`

	ListMenuItemsSQL = `
		SELECT id, category_id, name, description, price, is_available, image_url, created_at, updated_at
		FROM menu_items
		ORDER BY name ASC`

	GetMenuItemSQL = `
		SELECT id, category_id, name, description, price, is_available, image_url, created_at, updated_at
		FROM menu_items WHERE id = $1`

	InsertMenuItemSQL = `
		INSERT INTO menu_items (id, category_id, name, description, price, is_available, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	UpdateMenuItemSQL = `
		UPDATE menu_items
		SET category_id = $1, name = $2, description = $3, price = $4, is_available = $5, image_url = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING created_at, updated_at`

	DeleteMenuItemSQL = `
		DELETE FROM menu_items WHERE id = $1`
)
