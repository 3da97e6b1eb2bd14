package routes

import (
	"supplyhub/app"
	"supplyhub/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	// 控制器与依赖
	s := controllers.GetSrv(a)
	batchCtl := controllers.NewBatchController(s)
	returnCtl := controllers.NewReturnController(s)
	scanCtl := controllers.NewScanController(s)
	catalogCtl := controllers.NewCatalogController(s)

	// 复用的中间件
	requesterMW := app.RequesterRequired()
	adminMW := app.AdminOnly(a.Config)

	// ------------------------------
	// 目录浏览
	// ------------------------------
	catalog := r.Group("/api/supplies", requesterMW)
	{
		catalog.GET("", catalogCtl.ListSupplies)
		catalog.GET("/:id/instances", catalogCtl.ListInstances)
	}

	// ------------------------------
	// 批量申请与归还
	// ------------------------------
	reqs := r.Group("/api/requests", requesterMW)
	{
		reqs.POST("/batch", batchCtl.Submit) // Idempotency-Key honored
		reqs.GET("", batchCtl.MyRequests)
		reqs.GET("/overdue", batchCtl.MyOverdue)
	}

	r.GET("/api/batches/:id/returns", requesterMW, batchCtl.BatchStatus)

	returns := r.Group("/api", requesterMW)
	{
		returns.POST("/returns/:borrowedItemId", returnCtl.Return)
		returns.GET("/loans", returnCtl.ListLoans) // ?status=open|returned&instanceId=
	}

	// ------------------------------
	// 扫码入口
	// ------------------------------
	r.POST("/api/scan", requesterMW, scanCtl.Scan)

	// ------------------------------
	// 管理（库存登记、修正、报损）
	// ------------------------------
	admin := r.Group("/api/admin", adminMW)
	{
		admin.POST("/supplies", catalogCtl.CreateSupply)
		admin.POST("/instances", catalogCtl.CreateInstance)
		admin.POST("/supplies/:id/adjust", catalogCtl.AdjustStock)
		admin.GET("/supplies/:id/movements", catalogCtl.ListMovements)
		admin.POST("/instances/:id/status", catalogCtl.SetInstanceStatus)
		admin.POST("/loans/:id/lost", returnCtl.MarkLost)
	}
}
